package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/park285/chess-arena/internal/broadcast"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/pkg/arenadto"
)

var errUnknownEvent = &domain.Error{Code: "unknown_event", Msg: "unknown event"}

func (s *Server) handle(ctx context.Context, c *broadcast.Client, fr arenadto.Frame) error {
	switch fr.Event {
	case arenadto.EventPlayGame:
		raw, err := scalar(fr.Data)
		if err != nil {
			return err
		}
		return s.app.PlayGame(ctx, c.Email(), raw)
	case arenadto.EventMakeMove:
		var in arenadto.InputChessMove
		if err := decodeNested(fr.Data, &in); err != nil {
			return err
		}
		in.From, in.To = strings.ToLower(in.From), strings.ToLower(in.To)
		if err := s.validate.Struct(in); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrMalformedPayload, describe(err))
		}
		return s.app.MakeMove(ctx, c.Email(), in.Domain())
	case arenadto.EventDeleteUsers:
		var emails []string
		if err := decodeNested(fr.Data, &emails); err != nil {
			return err
		}
		if len(emails) == 0 {
			return fmt.Errorf("%w: no users given", domain.ErrMalformedPayload)
		}
		return s.app.DeleteUsers(ctx, c.Email(), emails)
	default:
		return fmt.Errorf("%w: %s", errUnknownEvent, fr.Event)
	}
}

// scalar returns a JSON string's content, or the literal text of a number.
func scalar(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", domain.ErrMalformedPayload)
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		return s, nil
	}
	return string(data), nil
}

// decodeNested accepts both a JSON value and a JSON string holding one;
// browser clients send either.
func decodeNested(data json.RawMessage, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		data = []byte(inner)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return nil
}

func describe(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
