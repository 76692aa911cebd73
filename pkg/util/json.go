package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
)

// PrintPrettyJSON prints v as indented JSON on stdout.
func PrintPrettyJSON(v any) error {
	return WritePrettyJSON(os.Stdout, v)
}

// WritePrettyJSON writes v as indented JSON followed by a newline. Nil slices
// print as [] and nil maps as {}.
func WritePrettyJSON(w io.Writer, v any) error {
	if v == nil {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	switch rv := reflect.ValueOf(v); {
	case rv.Kind() == reflect.Slice && rv.IsNil():
		_, err := fmt.Fprintln(w, "[]")
		return err
	case rv.Kind() == reflect.Map && rv.IsNil():
		_, err := fmt.Fprintln(w, "{}")
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, buf.String())
	return err
}

// PrettyJSON returns raw JSON indented, or raw itself when it is not valid JSON.
func PrettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
