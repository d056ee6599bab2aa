// Package csvio читает и пишет CSV-выгрузки заявок.
package csvio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Table таблица с заголовком.
type Table struct {
	Headers []string
	Rows    [][]string
}

// EscapeField удваивает кавычки и берёт значение в кавычки,
// если в нём есть запятая, кавычка или перевод строки.
func EscapeField(value string) string {
	escaped := strings.ReplaceAll(value, `"`, `""`)
	if strings.ContainsAny(escaped, ",\"\n\r") {
		return `"` + escaped + `"`
	}
	return escaped
}

// Write пишет таблицу: строка заголовков, затем строки данных, разделённые "\n".
// После последней строки перевод строки не ставится.
func Write(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	writeRow := func(row []string) {
		for i, v := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(EscapeField(v))
		}
	}

	writeRow(t.Headers)
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("csvio: строка %d: %d значений при %d колонках", i+1, len(row), len(t.Headers))
		}
		bw.WriteByte('\n')
		writeRow(row)
	}
	return bw.Flush()
}

// Bytes возвращает таблицу в виде CSV.
func Bytes(t Table) ([]byte, error) {
	var b strings.Builder
	if err := Write(&b, t); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
