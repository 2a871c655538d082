package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BuzzLyutic/taskdesk/internal/model"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// nullableDate tells an absent field apart from an explicit null.
type nullableDate struct {
	Set  bool
	Date *model.Date
}

func (n *nullableDate) UnmarshalJSON(data []byte) error {
	n.Set = true
	var d model.Date
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	if !d.IsZero() {
		n.Date = &d
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
