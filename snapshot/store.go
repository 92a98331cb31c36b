// Package snapshot stores serialized model parameters. The protocol core
// never interprets the bytes: the layout belongs to whichever capability
// wrote them.
package snapshot

import (
	"fmt"
	"os"
	"path"
)

// Store keeps one blob per (dir, name, epoch).
type Store interface {
	Put(dir string, epoch int, name string, data []byte) error
	Get(dir string, epoch int, name string) ([]byte, error)
}

// FileStore writes snapshots as files under the save directory.
type FileStore struct{}

func (FileStore) path(dir string, epoch int, name string) string {
	return path.Join(dir, fmt.Sprintf("%s_%d.json", name, epoch))
}

func (s FileStore) Put(dir string, epoch int, name string, data []byte) error {
	if _, err := os.Stat(dir); err != nil {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path(dir, epoch, name), data, 0644)
}

func (s FileStore) Get(dir string, epoch int, name string) ([]byte, error) {
	return os.ReadFile(s.path(dir, epoch, name))
}
