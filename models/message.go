package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

// Message is a single entry of a conversation transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Messages is stored as a JSON array in a TEXT column.
type Messages []Message

func (m Messages) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}

	b, err := json.Marshal([]Message(m))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func (m *Messages) Scan(src interface{}) error {
	var raw []byte

	switch v := src.(type) {
	case nil:
		*m = Messages{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("messages: unsupported column type %T", src)
	}

	if len(raw) == 0 {
		*m = Messages{}
		return nil
	}

	decoded := Messages{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("messages: %w", err)
	}

	*m = decoded
	return nil
}
