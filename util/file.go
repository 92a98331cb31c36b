package util

import (
	"os"
	"path"
	"strings"
)

// WriteToFile replaces the file at savePath with the given lines, creating
// parent directories as needed.
func WriteToFile(savePath string, content ...string) error {
	if dir := path.Dir(savePath); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	return os.WriteFile(savePath, []byte(strings.Join(content, "\n")+"\n"), 0644)
}

// AppendToFile appends the given lines to the file at savePath, creating it
// and parent directories as needed.
func AppendToFile(savePath string, content ...string) error {
	if dir := path.Dir(savePath); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, s := range content {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return nil
}
