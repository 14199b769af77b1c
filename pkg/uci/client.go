// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uci talks to a single external UCI engine process used for
// position scoring. The process accepts one analysis at a time, so every
// caller is funneled through one mutually exclusive client.
package uci

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config describes how to launch and drive the scoring engine.
type Config struct {
	Name string
	Cmd  string
	Dir  string
	Arg  string

	Options map[string]string

	// MoveTime is the per-position analysis budget.
	MoveTime time.Duration
}

// ErrReadTimeout is reported when the engine stops answering in time.
var ErrReadTimeout = errors.New("uci: read i/o timeout")

// ErrUnavailable is reported when the engine process could not be
// started or died mid-call. It is never fatal: the next call retries the
// startup transparently.
var ErrUnavailable = errors.New("uci: engine unavailable")

// Client serializes access to one engine process. It is safe for
// concurrent use; a call issued while another is in flight waits its
// turn rather than spawning a second process.
type Client struct {
	mu     sync.Mutex
	config Config
	proc   *process
}

// NewClient returns a client for the given engine. The process itself is
// started lazily on the first evaluation.
func NewClient(config Config) *Client {
	if config.Name == "" {
		config.Name = config.Cmd
	}
	if config.MoveTime <= 0 {
		config.MoveTime = 200 * time.Millisecond
	}

	return &Client{config: config}
}

// Evaluate scores a position, given by its FEN, from White's perspective
// in centipawns. Forced mates map to ±10000 preserving sign. A dead
// process is detected and restarted on the next call; the current call
// reports ErrUnavailable instead.
func (c *Client) Evaluate(fen string, moveTime time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if moveTime <= 0 {
		moveTime = c.config.MoveTime
	}

	proc, err := c.ensure()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cp, err := proc.evaluate(fen, moveTime)
	if err != nil {
		// Assume the process is wedged or gone. Kill it so the next
		// call starts fresh.
		c.shutdown()
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return cp, nil
}

// Close terminates the engine process, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown()
}

// ensure returns a live process, starting one if necessary.
// Callers hold c.mu.
func (c *Client) ensure() (*process, error) {
	if c.proc != nil {
		return c.proc, nil
	}

	proc, err := start(c.config)
	if err != nil {
		return nil, err
	}

	c.proc = proc
	return proc, nil
}

// Callers hold c.mu.
func (c *Client) shutdown() {
	if c.proc != nil {
		c.proc.kill()
		c.proc = nil
	}
}

type process struct {
	config Config

	cmd    *exec.Cmd
	writer *bufio.Writer
	reader *bufio.Reader

	lines chan string
	quit  chan struct{}
	once  sync.Once
	err   error
}

func start(config Config) (*process, error) {
	cmd := exec.Command(config.Cmd, strings.Fields(config.Arg)...)
	cmd.Dir = config.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	proc := &process{
		config: config,
		cmd:    cmd,
		writer: bufio.NewWriter(stdin),
		reader: bufio.NewReader(stdout),
		lines:  make(chan string),
		quit:   make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go proc.pump()

	if err := proc.initialize(); err != nil {
		proc.kill()
		return nil, err
	}

	return proc, nil
}

// pump forwards the engine's output lines to p.lines until the stream
// ends or p.quit closes. The quit path is what lets kill discard a
// process without stranding this goroutine on a send nobody receives.
func (p *process) pump() {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			p.err = err
			close(p.lines)
			return
		}

		line = strings.Trim(line, " \n\t\r")

		logrus.Debugf("uci: ("+p.config.Name+")> %s\n", line)

		select {
		case p.lines <- line:
		case <-p.quit:
			return
		}
	}
}

// initialize runs the UCI handshake, applies the configured options and
// prepares the engine for a new game.
func (p *process) initialize() error {
	if err := p.write("uci"); err != nil {
		return err
	}

	if _, err := p.await("uciok", 5*time.Second); err != nil {
		return err
	}

	for name, value := range p.config.Options {
		if err := p.write("setoption name %s value %s", name, value); err != nil {
			return err
		}
	}

	if err := p.write("ucinewgame"); err != nil {
		return err
	}

	return p.synchronize()
}

// synchronize waits for the engine to complete any pending work.
func (p *process) synchronize() error {
	if err := p.write("isready"); err != nil {
		return err
	}

	_, err := p.await("readyok", 5*time.Second)
	return err
}

// evaluate runs one scoring pass and returns the final reported score in
// centipawns from White's perspective.
func (p *process) evaluate(fen string, moveTime time.Duration) (int, error) {
	if err := p.write("position fen %s", fen); err != nil {
		return 0, err
	}

	if err := p.synchronize(); err != nil {
		return 0, err
	}

	if err := p.write("go movetime %d", moveTime.Milliseconds()); err != nil {
		return 0, err
	}

	// The engine streams info lines while it thinks; the last score
	// before bestmove is its final verdict.
	timer := time.NewTimer(4*moveTime + 5*time.Second)
	defer timer.Stop()

	var last score
	var seen bool

	for {
		select {
		case <-timer.C:
			if p.err != nil {
				return 0, p.err
			}

			return 0, ErrReadTimeout

		case line, ok := <-p.lines:
			if !ok {
				if p.err != nil {
					return 0, p.err
				}

				return 0, errors.New("uci: engine closed its output")
			}

			if s, ok := parseScore(line); ok {
				last, seen = s, true
			}

			if strings.HasPrefix(line, "bestmove") {
				if !seen {
					return 0, errors.New("uci: no score before bestmove")
				}

				cp := last.centipawns()
				if !whiteToMove(fen) {
					// UCI scores are from the mover's point of view.
					cp = -cp
				}

				return cp, nil
			}
		}
	}
}

// await waits for a line matching pattern with a fixed timeout.
func (p *process) await(pattern string, timeout time.Duration) (string, error) {
	regex := regexp.MustCompile(pattern)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if p.err != nil {
				return "", p.err
			}

			return "", ErrReadTimeout

		case line, ok := <-p.lines:
			if !ok {
				if p.err != nil {
					return "", p.err
				}

				return "", ErrReadTimeout
			}

			if regex.MatchString(line) {
				return line, nil
			}
		}
	}
}

func (p *process) write(format string, a ...any) error {
	logrus.Debugf("uci: ("+p.config.Name+")< "+format+"\n", a...)

	if _, err := fmt.Fprintf(p.writer, format+"\n", a...); err != nil {
		return err
	}

	return p.writer.Flush()
}

func (p *process) kill() {
	_ = p.write("quit")
	p.once.Do(func() { close(p.quit) })
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
