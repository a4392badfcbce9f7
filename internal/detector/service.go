package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/lingolens/internal/geometry"
)

// ServiceDetector implements Detector using a Python detection subprocess.
// Frames are sent as length-prefixed JPEG images on stdin; the service
// answers each frame with one line of JSON on stdout.
type ServiceDetector struct {
	kind       Kind
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer
}

// ScriptName returns the service script used for a candidate kind.
func ScriptName(kind Kind) string {
	if kind == TextBlock {
		return "text_service.py"
	}
	return "object_service.py"
}

// NewServiceDetector creates a detector backed by the service script for kind.
// The Python process is started lazily on first detection.
func NewServiceDetector(kind Kind, config Config) (*ServiceDetector, error) {
	scriptPath := findScript(ScriptName(kind))
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", ScriptName(kind))
	}

	return &ServiceDetector{
		kind:       kind,
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Detect analyzes a frame and returns the detected candidates. If ctx is
// cancelled mid-exchange the service is stopped, since its stream position
// is no longer known; it restarts on the next call.
func (d *ServiceDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Candidate, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	type reply struct {
		line string
		err  error
	}
	done := make(chan reply, 1)
	data := buf.GetBytes()
	go func() {
		line, err := d.exchange(data)
		done <- reply{line, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		if d.cmd != nil && d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		<-done
		d.shutdown()
		return nil, ctx.Err()
	}
	if r.err != nil {
		d.shutdown()
		return nil, r.err
	}

	var response struct {
		Candidates []jsonCandidate `json:"candidates"`
		Error      string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(r.line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("%s service: %s", d.kind, response.Error)
	}

	size := geometry.Size{Width: float64(frame.Cols()), Height: float64(frame.Rows())}
	result := make([]Candidate, 0, len(response.Candidates))
	for _, c := range response.Candidates {
		cand := c.toCandidate(d.kind).Clip(size)
		if cand.Valid() {
			result = append(result, cand)
		}
	}
	result = limit(result, d.kind, d.config.MaxResults)

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ServiceDetector) exchange(data []byte) (string, error) {
	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return "", fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return "", fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{d.scriptPath, fmt.Sprintf("--min-confidence=%.2f", d.config.MinConfidence)}
	d.cmd = exec.Command(pythonPath, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start %s service: %w", d.kind, err)
	}

	log.Printf("Started %s detection service (pid %d)", d.kind, d.cmd.Process.Pid)

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if time.Since(d.lastUsed) < d.config.IdleTimeout {
			return
		}
		d.shutdown()
	})
}

// limit keeps at most n candidates. Objects keep the most confident ones;
// text blocks keep reading order.
func limit(cands []Candidate, kind Kind, n int) []Candidate {
	if n <= 0 || len(cands) <= n {
		return cands
	}
	if kind == Object {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Confidence > cands[j].Confidence
		})
	}
	return cands[:n]
}

func findScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".lingolens", "scripts", name),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".lingolens/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonCandidate is the JSON structure emitted by the detection services.
// Box is [x, y, width, height] in image pixels.
type jsonCandidate struct {
	Label      string     `json:"label"`
	Text       string     `json:"text"`
	Confidence *float64   `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

func (c jsonCandidate) toCandidate(kind Kind) Candidate {
	box := geometry.NewRect(c.Box[0], c.Box[1], c.Box[2], c.Box[3])
	if kind == TextBlock {
		text := c.Text
		if text == "" {
			text = c.Label
		}
		cand := NewTextBlock(text, box)
		if c.Confidence != nil {
			cand.Confidence = *c.Confidence
		}
		return cand
	}

	conf := 0.0
	if c.Confidence != nil {
		conf = *c.Confidence
	}
	return NewObject(c.Label, conf, box)
}
