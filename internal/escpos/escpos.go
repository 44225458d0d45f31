// Package escpos builds command streams for thermal receipt printers. The
// output is raw bytes for a local printer bridge to hand to the device.
package escpos

import (
	"bytes"
	"strings"
)

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

const (
	SizeNormal     = 0x00
	SizeDouble     = 0x11
	SizeDoubleWide = 0x10
)

// Builder accumulates ESC/POS commands. Width is the print width in
// characters: 32 for 58mm paper, 48 for 80mm.
type Builder struct {
	buf   bytes.Buffer
	width int
}

func NewBuilder(width int) *Builder {
	if width <= 0 {
		width = 48
	}
	b := &Builder{width: width}
	b.buf.Write([]byte{esc, '@'})
	return b
}

func (b *Builder) Width() int { return b.width }

func (b *Builder) Align(a int) *Builder {
	b.buf.Write([]byte{esc, 'a', byte(a)})
	return b
}

func (b *Builder) Bold(on bool) *Builder {
	v := byte(0)
	if on {
		v = 1
	}
	b.buf.Write([]byte{esc, 'E', v})
	return b
}

func (b *Builder) Size(s byte) *Builder {
	b.buf.Write([]byte{gs, '!', s})
	return b
}

// Line writes text followed by a line feed.
func (b *Builder) Line(s string) *Builder {
	b.buf.WriteString(s)
	b.buf.WriteByte(lf)
	return b
}

func (b *Builder) Feed(n int) *Builder {
	for i := 0; i < n; i++ {
		b.buf.WriteByte(lf)
	}
	return b
}

func (b *Builder) Separator() *Builder {
	return b.Line(strings.Repeat("-", b.width))
}

// PairLine prints a left-aligned label and right-aligned value on one line,
// padding between them. Oversized pairs keep a single space.
func (b *Builder) PairLine(label, value string) *Builder {
	pad := b.width - len(label) - len(value)
	if pad < 1 {
		pad = 1
	}
	return b.Line(label + strings.Repeat(" ", pad) + value)
}

func (b *Builder) Cut() *Builder {
	b.buf.Write([]byte{gs, 'V', 0x00})
	return b
}

// DrawerPulse fires the kick-out pulse on drawer pin 2.
func (b *Builder) DrawerPulse() *Builder {
	b.buf.Write([]byte{esc, 'p', 0x00, 0x19, 0xfa})
	return b
}

func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

// DrawerKick is the standalone open-drawer command, for the cash drawer
// endpoint where no document is printed.
func DrawerKick() []byte {
	return []byte{esc, 'p', 0x00, 0x19, 0xfa}
}
