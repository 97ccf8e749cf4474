package ftm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ftm-project/ftm/internal/errors"
)

const (
	logFileName   = "ftm.log"
	rotateAtBytes = 10 * 1024 * 1024
	rotateBacklog = 5
)

// setupLogging points the shared zerolog logger at both stdout and a
// rolling file under .ftm/logs, matching the teacher's console-first
// style while giving the engine something to rotate in its
// clean_interval pass.
func setupLogging(ftmDir string) (*os.File, error) {
	logDir := filepath.Join(ftmDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, errors.IO("failed to create log dir", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.IO("failed to open log file", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return f, nil
}

// rotateLogIfNeeded gzip-compresses the current log file once it passes
// rotateAtBytes, starting a fresh one in its place. Called from the
// engine's clean_interval housekeeping, not on a dedicated timer.
func rotateLogIfNeeded(logDir string, current *os.File) (*os.File, error) {
	info, err := current.Stat()
	if err != nil {
		return current, errors.IO("failed to stat log file", err)
	}
	if info.Size() < rotateAtBytes {
		return current, nil
	}

	if err := current.Close(); err != nil {
		return current, errors.IO("failed to close log file for rotation", err)
	}

	path := filepath.Join(logDir, logFileName)
	rotated := filepath.Join(logDir, fmt.Sprintf("ftm-%s.log.gz", time.Now().UTC().Format("20060102T150405")))
	if err := gzipFile(path, rotated); err != nil {
		log.Warn().Err(err).Msg("failed to compress rotated log")
	} else if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Msg("failed to remove pre-rotation log file")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.IO("failed to reopen log file after rotation", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()

	pruneOldRotations(logDir)
	return f, nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	_, err = io.Copy(gw, in)
	return err
}

// pruneOldRotations keeps only the rotateBacklog most recent gzip logs.
func pruneOldRotations(logDir string) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	var rotated []os.DirEntry
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".gz" {
			rotated = append(rotated, e)
		}
	}
	if len(rotated) <= rotateBacklog {
		return
	}
	// os.ReadDir returns entries sorted by name, and the timestamp suffix
	// sorts chronologically, so the earliest entries are the oldest.
	for _, e := range rotated[:len(rotated)-rotateBacklog] {
		os.Remove(filepath.Join(logDir, e.Name()))
	}
}
