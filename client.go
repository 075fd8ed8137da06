package main

import (
	"encoding/json"
	"os"

	"github.com/mil-ad/bluenotify/internal/ipc"
)

func runStatus() error {
	resp, err := ipc.Call(ipc.SocketPath(), ipc.Request{Command: ipc.CommandStatus})
	if err != nil {
		return err
	}
	return printJSON(resp.Entities)
}

func runHistory() error {
	resp, err := ipc.Call(ipc.SocketPath(), ipc.Request{Command: ipc.CommandHistory})
	if err != nil {
		return err
	}
	return printJSON(resp.History)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
