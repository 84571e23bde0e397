//go:build !linux
// +build !linux

package output

import "errors"

func openDevice(string, int) (serialPort, error) {
	return nil, errors.New("serial DMX output needs termios2, which is linux only")
}
