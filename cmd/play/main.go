// play is the terminal client. It runs the endless runner locally at
// ~60 FPS, keeps the local best in a file, and reports each finished
// run to the leaderboard server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/game"
)

// fileKV persists the local best under the user config directory.
type fileKV struct {
	dir string
}

func newFileKV() (*fileKV, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &fileKV{dir: filepath.Join(base, "geometry-runner")}, nil
}

func (f *fileKV) Get(ctx context.Context, key string) (string, bool, error) {
	b, err := os.ReadFile(filepath.Join(f.dir, key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(b)), true, nil
}

func (f *fileKV) Set(ctx context.Context, key, value string) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, key), []byte(value), 0o644)
}

type submitResult struct {
	err error
}

type client struct {
	screen tcell.Screen
	loop   *game.Loop
	keeper *game.ScoreKeeper

	name      string
	email     string
	serverURL string
	http      *http.Client

	notice       string
	noticeUntil  time.Time
	lastSummary  *game.Summary
	submitStatus string
	submitCh     chan submitResult
	runStarted   time.Time
}

func newClient(name, email, serverURL string) (*client, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	kv, err := newFileKV()
	if err != nil {
		screen.Fini()
		return nil, err
	}
	keeper := game.NewScoreKeeper(kv)
	if err := keeper.Load(context.Background()); err != nil {
		// Start from 0 rather than refusing to play.
		keeper = game.NewScoreKeeper(kv)
	}

	return &client{
		screen:    screen,
		loop:      game.NewLoop(rand.New(rand.NewSource(time.Now().UnixNano()))),
		keeper:    keeper,
		name:      name,
		email:     email,
		serverURL: strings.TrimRight(serverURL, "/"),
		http:      &http.Client{Timeout: 10 * time.Second},
		submitCh:  make(chan submitResult, 1),
	}, nil
}

func (c *client) run() {
	ticker := time.NewTicker(time.Second / game.TickHz)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- c.screen.PollEvent()
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !c.handleInput(ev) {
				return
			}

		case res := <-c.submitCh:
			if res.err != nil {
				c.submitStatus = "submission failed: " + res.err.Error()
			} else {
				c.submitStatus = "score submitted"
			}

		case <-ticker.C:
			ev := c.loop.Tick()
			if ev.Collided {
				c.finishRun(ev.Score)
			}
			if ev.Notice {
				c.notice = fmt.Sprintf("Congratulations! You've reached %d points!", ev.Score)
				c.noticeUntil = time.Now().Add(2 * time.Second)
			}
			c.draw()
		}
	}
}

func (c *client) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyEscape:
			c.loop.Pause()
		case ev.Rune() == ' ' || ev.Key() == tcell.KeyUp:
			if c.loop.State() == game.StatePlaying {
				c.loop.Jump()
			} else {
				c.startRun()
			}
		case ev.Key() == tcell.KeyEnter:
			if c.loop.State() != game.StatePlaying {
				c.startRun()
			}
		}
	case *tcell.EventResize:
		c.screen.Sync()
	}
	return true
}

func (c *client) startRun() {
	c.loop.Start()
	c.runStarted = time.Now()
	c.lastSummary = nil
	c.submitStatus = ""
	c.notice = ""
}

func (c *client) finishRun(score int) {
	duration := int(time.Since(c.runStarted).Seconds())

	sum, err := c.keeper.Finalize(context.Background(), score)
	if err != nil {
		c.submitStatus = "could not save local best"
	}
	c.lastSummary = &sum

	if c.serverURL == "" {
		c.submitStatus = "offline run, not submitted"
		return
	}
	c.submitStatus = "submitting..."

	event := domain.RunEvent{
		PlayerName:     c.name,
		Email:          c.email,
		Score:          sum.Score,
		Stars:          sum.Stars,
		LevelCompleted: sum.Level,
		GameDuration:   duration,
		Timestamp:      time.Now().UTC(),
	}
	go func() {
		c.submitCh <- submitResult{err: c.postRun(event)}
	}()
}

func (c *client) postRun(event domain.RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.serverURL+"/api/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// draw renders the field scaled to the terminal. The world is
// 800x400; every coordinate is mapped through scaleX/scaleY.
func (c *client) draw() {
	c.screen.Clear()
	width, height := c.screen.Size()
	if width < 20 || height < 10 {
		c.drawText(0, 0, tcell.StyleDefault, "window too small")
		c.screen.Show()
		return
	}

	fieldTop := 2
	fieldHeight := height - fieldTop - 1
	scaleX := func(x float64) int { return int(x * float64(width) / game.FieldWidth) }
	scaleY := func(y float64) int { return fieldTop + int(y*float64(fieldHeight)/game.FieldHeight) }

	w := c.loop.World()

	// HUD
	hud := fmt.Sprintf(" %s | score %d | best %d | speed %.1f", c.name, w.Score, c.keeper.Best(), w.Speed)
	c.drawText(0, 0, tcell.StyleDefault.Bold(true), hud)

	// Ground
	groundRow := scaleY(game.GroundY + game.PlayerHeight)
	for x := 0; x < width; x++ {
		c.screen.SetContent(x, groundRow, '─', nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}

	// Obstacles
	obstacleStyle := tcell.StyleDefault.Foreground(tcell.ColorRed)
	for _, ob := range w.Obstacles {
		left := scaleX(ob.X)
		right := scaleX(ob.X + ob.Width)
		top := scaleY(ob.Y)
		for x := left; x <= right && x < width; x++ {
			if x < 0 {
				continue
			}
			for y := top; y < groundRow; y++ {
				c.screen.SetContent(x, y, '█', nil, obstacleStyle)
			}
		}
	}

	// Player
	playerStyle := tcell.StyleDefault.Foreground(tcell.ColorAqua)
	pLeft := scaleX(w.Player.X)
	pRight := scaleX(w.Player.X + game.PlayerWidth)
	pTop := scaleY(w.Player.Y)
	pBottom := scaleY(w.Player.Y + game.PlayerHeight)
	for x := pLeft; x <= pRight; x++ {
		for y := pTop; y <= pBottom && y < groundRow; y++ {
			c.screen.SetContent(x, y, '▓', nil, playerStyle)
		}
	}

	// Transient notice
	if c.notice != "" && time.Now().Before(c.noticeUntil) {
		c.drawText((width-len(c.notice))/2, 1, tcell.StyleDefault.Foreground(tcell.ColorYellow), c.notice)
	}

	// Overlays
	switch c.loop.State() {
	case game.StateMenu:
		c.drawCentered(width, height/2, "GEOMETRY RUNNER")
		c.drawCentered(width, height/2+1, "space to start, q to quit")
	case game.StateGameOver:
		c.drawCentered(width, height/2-1, "GAME OVER")
		if s := c.lastSummary; s != nil {
			line := fmt.Sprintf("score %d | stars %s | level %d", s.Score, strings.Repeat("*", s.Stars), s.Level)
			if s.NewBest {
				line += " | new best!"
			}
			c.drawCentered(width, height/2, line)
		}
		if c.submitStatus != "" {
			c.drawCentered(width, height/2+1, c.submitStatus)
		}
		c.drawCentered(width, height/2+2, "space to play again")
	}

	c.screen.Show()
}

func (c *client) drawText(x, y int, style tcell.Style, text string) {
	for i, r := range text {
		c.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (c *client) drawCentered(width, y int, text string) {
	c.drawText((width-len(text))/2, y, tcell.StyleDefault.Bold(true), text)
}

func (c *client) cleanup() {
	c.screen.Fini()
}

func main() {
	name := flag.String("name", "", "Player display name")
	email := flag.String("email", "", "Player email (optional)")
	server := flag.String("server", "http://localhost:8080", "Leaderboard server URL (empty for offline play)")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "a player name is required: play -name Ana")
		os.Exit(1)
	}

	c, err := newClient(*name, *email, *server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer c.cleanup()

	c.run()
}
