package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/vanderheijden86/appdrawer/pkg/search"
	"github.com/vanderheijden86/appdrawer/pkg/ui"
)

// EnvAutoClose quits the interactive picker after the given number of
// milliseconds. Used by automated tests.
const EnvAutoClose = "DRAWER_TUI_AUTOCLOSE_MS"

func runInteractive(ctx context.Context, a *app, f cliFlags) error {
	u, err := a.load(ctx, f.force, f.timeout)
	if err != nil {
		return err
	}

	var p *tea.Program
	engine := a.newEngine(u, search.WithOnResults(func(r search.Results) {
		p.Send(ui.ResultsMsg(r))
	}))
	defer engine.Close()

	theme := ui.DefaultTheme(lipgloss.NewRenderer(os.Stdout))
	p = tea.NewProgram(
		ui.NewPickerModel(engine, a.cfg.SearchMode(), theme),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
	)

	if v := os.Getenv(EnvAutoClose); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-timer.C:
					p.Quit()
				case <-ctx.Done():
				}
			}()
		}
	}

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running picker: %w", err)
	}
	m, ok := final.(ui.PickerModel)
	if !ok {
		return nil
	}
	r, ok := m.Chosen()
	if !ok {
		return nil
	}
	value := copyValue(r)
	if err := clipboard.WriteAll(value); err != nil {
		a.logger.Warn("clipboard unavailable", zap.Error(err))
	}
	fmt.Println(value)
	return nil
}
