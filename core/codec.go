package core

import (
	"encoding/json"
	"fmt"
)

// LogFormatVersion is the version written by MarshalLog.
const LogFormatVersion = 1

type logEnvelope struct {
	Version  int       `json:"version"`
	Messages []Message `json:"messages"`
}

// MarshalLog encodes a log into its checkpoint representation.
func MarshalLog(l Log) ([]byte, error) {
	msgs := []Message(l)
	if msgs == nil {
		msgs = []Message{}
	}

	data, err := json.Marshal(logEnvelope{Version: LogFormatVersion, Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("marshal log: %w", err)
	}

	return data, nil
}

// UnmarshalLog decodes data produced by MarshalLog. Empty input yields an
// empty log.
func UnmarshalLog(data []byte) (Log, error) {
	if len(data) == 0 {
		return Log{}, nil
	}

	var env logEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}

	if env.Version != LogFormatVersion {
		return nil, fmt.Errorf("unmarshal log: unsupported version %d", env.Version)
	}

	if env.Messages == nil {
		return Log{}, nil
	}

	return Log(env.Messages), nil
}
