package notify

import (
	"fmt"
	"os/exec"
	"strconv"
)

// dunstifyNotifier spawns dunstify for every notification and does not wait
// for it to exit. Actions are passed along but cannot be observed.
type dunstifyNotifier struct {
	bin string
}

// NewDunstify returns a Notifier backed by the dunstify command. It fails
// when the binary is not on PATH.
func NewDunstify() (Notifier, error) {
	bin, err := exec.LookPath("dunstify")
	if err != nil {
		return NewStub(), fmt.Errorf("find dunstify: %w", err)
	}
	return &dunstifyNotifier{bin: bin}, nil
}

func (d *dunstifyNotifier) Notify(n Notification) error {
	cmd := exec.Command(d.bin, dunstifyArgs(n)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start dunstify: %w", err)
	}
	go cmd.Wait() //nolint:errcheck // reap only
	return nil
}

func (d *dunstifyNotifier) Actions() <-chan ActionEvent { return nil }
func (d *dunstifyNotifier) Close() error                { return nil }

func dunstifyArgs(n Notification) []string {
	args := []string{
		"-a", AppName,
		"-i", n.Icon,
		"-u", n.Urgency.String(),
	}
	if n.ReplacesID != 0 {
		args = append(args, "-r", strconv.FormatUint(uint64(n.ReplacesID), 10))
	}
	if n.Timeout != 0 {
		args = append(args, "-t", strconv.Itoa(int(n.Timeout)))
	}
	for _, a := range n.Actions {
		args = append(args, "-A", a.Key+","+a.Label)
	}
	return append(args, n.Title, n.Body)
}
