// Package eventlog records crawl progress as append-only text streams that can
// be inspected while a crawl is still running.
package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Score is one admitted URL in a wave.
type Score struct {
	URL   string
	Score float64
}

// Log receives crawl events. Implementations must not fail the crawl.
type Log interface {
	Current(url string)
	Canonicalized(raw, normalized string)
	NotAllowed(url string)
	Rejected(url, reason string)
	Collision(url, resolved string)
	Error(kind, subject string, err error)
	Page(count, wave int, url string, score float64)
	WaveScores(wave int, scores []Score)
	Summary(crawled, discovered int)
}

type stream int

const (
	streamCurrent stream = iota
	streamCanon
	streamError
	streamNotAllowed
	streamPages
	streamWaves
	numStreams
)

var fileNames = [numStreams]string{
	streamCurrent:    "current_links.txt",
	streamCanon:      "canonicalization.txt",
	streamError:      "error.txt",
	streamNotAllowed: "not_allowed.txt",
	streamPages:      "log.txt",
	streamWaves:      "wave_score.txt",
}

const summaryFile = "final.txt"

// FileLog writes each event kind to its own file under one directory and
// mirrors it to the operational logger.
type FileLog struct {
	mu    sync.Mutex
	dir   string
	files [numStreams]*os.File
	log   logrus.FieldLogger
}

// Open truncates the event files in dir and returns a FileLog writing to them.
func Open(dir string, log logrus.FieldLogger) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	l := &FileLog{dir: dir, log: log}
	for i, name := range fileNames {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		l.files[i] = f
	}
	return l, nil
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for i, f := range l.files {
		if f != nil {
			errs = append(errs, f.Close())
			l.files[i] = nil
		}
	}
	return errors.Join(errs...)
}

func (l *FileLog) Current(url string) {
	l.write(streamCurrent, url+"\n")
	l.log.WithField("url", url).Debug("current")
}

func (l *FileLog) Canonicalized(raw, normalized string) {
	l.write(streamCanon, raw+",    "+normalized+"\n")
}

func (l *FileLog) NotAllowed(url string) {
	l.write(streamNotAllowed, "Not Allowed: "+url+"\n")
	l.log.WithField("url", url).Info("not allowed by robots.txt")
}

func (l *FileLog) Rejected(url, reason string) {
	l.write(streamError, fmt.Sprintf("Rejected: %s\nReason: %s\n\n", url, reason))
	l.log.WithField("url", url).WithField("reason", reason).Debug("rejected")
}

func (l *FileLog) Collision(url, resolved string) {
	l.write(streamError, fmt.Sprintf("Multiple redirected URL:\nURL: %s\nRedirected URL: %s\n\n", url, resolved))
	l.log.WithField("url", url).WithField("resolved", resolved).Info("redirect collision")
}

func (l *FileLog) Error(kind, subject string, err error) {
	l.write(streamError, fmt.Sprintf("%s error:\n%s\nError: %v\n\n", kind, subject, err))
	l.log.WithField("kind", kind).WithError(err).Debug(subject)
}

func (l *FileLog) Page(count, wave int, url string, score float64) {
	l.write(streamPages, fmt.Sprintf("%d, %d, %s, %s\n", count, wave, url, formatScore(score)))
	l.log.WithFields(logrus.Fields{
		"count": count,
		"wave":  wave,
		"score": score,
	}).Info(url)
}

func (l *FileLog) WaveScores(wave int, scores []Score) {
	var b []byte
	for _, s := range scores {
		b = fmt.Appendf(b, "%d, %s, %s\n", wave, s.URL, formatScore(s.Score))
	}
	l.write(streamWaves, string(b))
	l.log.WithField("wave", wave).WithField("admitted", len(scores)).Info("wave admitted")
}

// Summary overwrites the snapshot file with the latest counts.
func (l *FileLog) Summary(crawled, discovered int) {
	line := fmt.Sprintf("Number of crawled links: %d, Number of discovered links: %d\n", crawled, discovered)
	if err := os.WriteFile(filepath.Join(l.dir, summaryFile), []byte(line), 0o644); err != nil {
		l.log.WithError(err).Warn("write summary")
	}
}

func (l *FileLog) write(s stream, text string) {
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.files[s]
	if f == nil {
		return
	}
	if _, err := f.WriteString(text); err != nil {
		l.log.WithError(err).WithField("file", fileNames[s]).Warn("event log write failed")
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Discard drops every event.
var Discard Log = discard{}

type discard struct{}

func (discard) Current(string)                 {}
func (discard) Canonicalized(string, string)   {}
func (discard) NotAllowed(string)              {}
func (discard) Rejected(string, string)        {}
func (discard) Collision(string, string)       {}
func (discard) Error(string, string, error)    {}
func (discard) Page(int, int, string, float64) {}
func (discard) WaveScores(int, []Score)        {}
func (discard) Summary(int, int)               {}
