// Package notify delivers triggered alerts to the terminal and to live websocket clients.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"token_screener/internal/domain/entity"
)

// Console prints triggered alerts as coloured lines.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, now: time.Now}
}

func (c *Console) Permitted() bool { return true }

func (c *Console) Notify(_ context.Context, alert entity.PriceAlert, price float64) error {
	paint := color.New(color.FgGreen, color.Bold)
	if alert.Condition == entity.AlertBelow {
		paint = color.New(color.FgRed, color.Bold)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s %s %s\n",
		color.CyanString(c.now().Format("15:04:05")),
		paint.Sprint("PRICE ALERT"),
		alert.Message(price))
	return err
}

// Bell rings the terminal bell.
type Bell struct {
	mu  sync.Mutex
	out io.Writer
}

func NewBell(out io.Writer) *Bell {
	if out == nil {
		out = os.Stdout
	}
	return &Bell{out: out}
}

func (b *Bell) Play(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.out, "\a")
	return err
}
