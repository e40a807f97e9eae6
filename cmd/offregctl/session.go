package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/fslock"

	"github.com/joshuapare/offreg/hive"
	"github.com/joshuapare/offreg/internal/writer"
	"github.com/joshuapare/offreg/pkg/native"
	"github.com/joshuapare/offreg/pkg/offreg"
)

// newSession picks the provider the global flags ask for.
func newSession() (*offreg.Session, error) {
	opts := &offreg.Options{Logger: logger}
	if useNative {
		p, err := native.Load(dllPath)
		if err != nil {
			return nil, err
		}
		return offreg.NewSession(p, opts), nil
	}
	return offreg.NewSession(hive.New(&hive.Options{Logger: logger}), opts), nil
}

// withHive opens path read-only and hands its root to fn.
func withHive(path string, fn func(root *offreg.Key) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	printVerbose("Opening hive: %s\n", path)
	hv, err := s.Open(path)
	if err != nil {
		return err
	}
	defer hv.Close()
	return fn(hv.Root())
}

// mutateHive opens path, runs fn on its root and, when fn succeeds, saves the
// result over path. The image is saved next to path first and renamed into
// place, so a failure leaves the original untouched.
func mutateHive(path string, version offreg.Version, fn func(root *offreg.Key) error) error {
	return editHive(path, version, false, fn)
}

// editHive is mutateHive that, when create is set and path does not exist,
// starts from an empty hive instead. Edits hold the hive's lock file.
func editHive(path string, version offreg.Version, create bool, fn func(root *offreg.Key) error) error {
	unlock, err := lockHive(path)
	if err != nil {
		return err
	}
	defer unlock()

	s, err := newSession()
	if err != nil {
		return err
	}
	_, serr := os.Stat(path)
	fresh := create && errors.Is(serr, os.ErrNotExist)

	var hv *offreg.Hive
	if fresh {
		printVerbose("Creating hive: %s\n", path)
		hv, err = s.Create()
	} else {
		printVerbose("Opening hive: %s\n", path)
		hv, err = s.Open(path)
	}
	if err != nil {
		return err
	}
	defer hv.Close()

	if err := fn(hv.Root()); err != nil {
		return err
	}
	if fresh {
		if err := hv.Save(path, version.Major, version.Minor); err != nil {
			return err
		}
		reportSaved(path)
		return nil
	}
	return saveReplacing(hv, path, version)
}

const defaultLockTimeout = 5 * time.Second

var lockTimeout = defaultLockTimeout

// lockPath names the advisory lock file of a hive. It is left in place
// after use.
func lockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

func lockHive(path string) (func(), error) {
	l := fslock.New(lockPath(path))
	if err := l.LockWithTimeout(lockTimeout); err != nil {
		if errors.Is(err, fslock.ErrTimeout) {
			return nil, fmt.Errorf("hive %s is locked by another process", path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	logger.Debug("hive locked", "path", path)
	return func() { _ = l.Unlock() }, nil
}

func saveReplacing(hv *offreg.Hive, path string, version offreg.Version) error {
	tmp := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.offregctl-%d", filepath.Base(path), os.Getpid()))
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear stale temp file: %w", err)
	}
	if err := hv.Save(tmp, version.Major, version.Minor); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := writer.Replace(tmp, path); err != nil {
		return err
	}
	reportSaved(path)
	return nil
}

func reportSaved(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	printVerbose("Saved %s (%s)\n", path, humanize.Bytes(uint64(fi.Size())))
	logger.Debug("hive saved", "path", path, "bytes", fi.Size())
}

// parseVersion reads "major.minor". The major alone means minor 0.
func parseVersion(s string) (offreg.Version, error) {
	majorStr, minorStr, _ := strings.Cut(s, ".")
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return offreg.Version{}, fmt.Errorf("invalid version %q", s)
	}
	var minor uint64
	if minorStr != "" {
		if minor, err = strconv.ParseUint(minorStr, 10, 32); err != nil {
			return offreg.Version{}, fmt.Errorf("invalid version %q", s)
		}
	}
	return offreg.Version{Major: uint32(major), Minor: uint32(minor)}, nil
}

// saveVersion backs the --save-version flag of commands that write hives.
var saveVersion = "6.1"

func currentVersion() (offreg.Version, error) {
	return parseVersion(saveVersion)
}
