package source

import (
	"os"
	"path/filepath"

	"gopkg.in/fsnotify.v1"
)

// WaitForArtifact blocks until the file exists. Backends that
// materialize their artifact out of band (the extraction API drops the
// result into a shared directory) have nothing to poll except the
// filesystem.
func WaitForArtifact(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	}

	// watching is not recursive, wait for parent dirs first
	parent := filepath.Dir(filename)
	if parent != filename {
		if err := WaitForArtifact(parent); err != nil {
			return err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// watch the parent to get events for the new file
	if err := w.Add(parent); err != nil {
		return err
	}

	// check again, the file may have appeared before the watch
	if _, err := os.Stat(filename); err == nil {
		return nil
	}

	for {
		select {
		case evt := <-w.Events:
			if evt.Op&fsnotify.Create == fsnotify.Create && evt.Name == filename {
				return nil
			}
		case err := <-w.Errors:
			return err
		}
	}
}
