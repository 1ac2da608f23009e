package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// rodPage adapts a rod page to extract.Page. It only navigates and reads.
type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.timeout)
	defer pg.CancelTimeout()

	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	pg := p.page.Context(ctx).Timeout(p.timeout)
	defer pg.CancelTimeout()
	return pg.HTML()
}
