package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// handler answers the commands sent by the position query bridge.
type handler struct {
	Remote     string
	Simulation string

	m      sync.Mutex
	paused bool
	frame  uint64
}

type positionsReply struct {
	Remote     string `json:"remote"`
	Simulation string `json:"simulation,omitempty"`
	Frame      uint64 `json:"frame"`
	Paused     bool   `json:"paused"`
}

func (h *handler) HandleRequest(_ context.Context, payload []byte) ([]byte, error) {
	h.m.Lock()
	defer h.m.Unlock()

	switch cmd := string(payload); cmd {
	case "POSITIONS":
		if !h.paused {
			h.frame++
		}
	case "PAUSE":
		h.paused = true
	case "RESTART":
		h.paused = false
		h.frame = 0
	default:
		return nil, fmt.Errorf("unrecognized command: %q", cmd)
	}

	return json.Marshal(positionsReply{
		Remote:     h.Remote,
		Simulation: h.Simulation,
		Frame:      h.frame,
		Paused:     h.paused,
	})
}
