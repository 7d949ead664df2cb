//go:build linux

package control

import (
	"github.com/warthog618/go-gpiocdev"
)

type lineHandle = *gpiocdev.Line

func requestLine(chip string, b Button, onPress func()) (lineHandle, error) {
	return gpiocdev.RequestLine(chip, b.Line,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(b.Debounce),
		gpiocdev.WithConsumer("airsense-"+b.Name),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onPress() }),
	)
}
