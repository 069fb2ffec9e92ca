package plantuml

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"umlrender/internal/domain"
)

const killWaitDelay = time.Second

// JarEngine runs the PlantUML jar as a subprocess per call.
type JarEngine struct {
	javaPath string
	jarPath  string
}

// NewJarEngine returns an engine that executes "javaPath -jar jarPath".
func NewJarEngine(javaPath, jarPath string) *JarEngine {
	if javaPath == "" {
		javaPath = "java"
	}
	return &JarEngine{javaPath: javaPath, jarPath: jarPath}
}

func (e *JarEngine) run(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	full := append([]string{"-Djava.awt.headless=true", "-jar", e.jarPath}, args...)
	cmd := exec.CommandContext(ctx, e.javaPath, full...)
	cmd.Stdin = strings.NewReader(stdin)
	// children of the JVM may hold the output pipes after a kill
	cmd.WaitDelay = killWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Render pipes source through "-pipe -t<format>".
func (e *JarEngine) Render(ctx context.Context, source string, format domain.Format) ([]byte, error) {
	out, err := e.run(ctx, source, "-pipe", "-charset", "UTF-8", "-t"+string(format))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("engine produced no output")
	}
	return out, nil
}

// CheckSyntax uses "-pipe -syntax". The first output line is either the
// diagram type or ERROR, followed by the error line number and messages.
func (e *JarEngine) CheckSyntax(ctx context.Context, source string) (SyntaxReport, error) {
	out, err := e.run(ctx, source, "-pipe", "-charset", "UTF-8", "-syntax")
	if err != nil {
		return SyntaxReport{}, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return SyntaxReport{}, fmt.Errorf("empty syntax report")
	}
	if lines[0] != "ERROR" {
		return SyntaxReport{Valid: true, DiagramType: lines[0]}, nil
	}
	report := SyntaxReport{Valid: false}
	line := ""
	msgs := lines[1:]
	if len(msgs) > 0 {
		line, msgs = msgs[0], msgs[1:]
	}
	if len(msgs) == 0 {
		msgs = []string{"Syntax Error"}
	}
	for _, m := range msgs {
		if line != "" {
			m = fmt.Sprintf("line %s: %s", line, m)
		}
		report.Errors = append(report.Errors, m)
	}
	return report, nil
}

// Version parses the output of "-version".
func (e *JarEngine) Version(ctx context.Context) (string, error) {
	out, err := e.run(ctx, "", "-version")
	if err != nil {
		return "", err
	}
	m := versionPattern.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unexpected version output")
	}
	return string(m[1]), nil
}
