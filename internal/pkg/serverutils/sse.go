package serverutils

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// WriteSSE writes one server-sent event with a JSON payload and flushes it.
func WriteSSE(w *bufio.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}
