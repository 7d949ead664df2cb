//go:build !linux

package control

type lineHandle struct{}

func (lineHandle) Close() error { return nil }

func requestLine(string, Button, func()) (lineHandle, error) {
	return lineHandle{}, ErrNotSupported
}
