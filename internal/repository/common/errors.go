package common

import "errors"

// ErrNotFound ключ отсутствует в kv_store.
var ErrNotFound = errors.New("значение не найдено")
