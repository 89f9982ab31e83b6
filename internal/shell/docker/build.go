package docker

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
)

// =============================================================================
// Build Context
// =============================================================================

// tarDirectory packages dir as an uncompressed tar build context.
// Only regular files and directories are included.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// =============================================================================
// Build Stream
// =============================================================================

// decodeBuildStream reads JSON messages from a build response until EOF.
// Error messages mark the build failed without stopping the read.
func decodeBuildStream(r io.Reader, tag string, onEvent func(BuildEvent)) error {
	emit := func(ev BuildEvent) {
		if onEvent != nil && ev.Message != "" {
			onEvent(ev)
		}
	}

	var buildErr *BuildError
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if buildErr != nil {
				break
			}
			return NewDockerError("BuildImage", "image", tag, fmt.Sprintf("build output interrupted: %v", err), err)
		}

		switch {
		case msg.Error != nil:
			buildErr = &BuildError{Tag: tag, Message: msg.Error.Message, Code: msg.Error.Code}
			emit(BuildEvent{Message: msg.Error.Message, Error: true})
		case msg.ErrorMessage != "":
			buildErr = &BuildError{Tag: tag, Message: msg.ErrorMessage}
			emit(BuildEvent{Message: msg.ErrorMessage, Error: true})
		case msg.Stream != "":
			emit(BuildEvent{Message: msg.Stream})
		case msg.Status != "":
			status := msg.Status
			if msg.ID != "" {
				status = msg.ID + ": " + status
			}
			emit(BuildEvent{Message: strings.TrimRight(status, "\n") + "\n"})
		}
	}

	if buildErr != nil {
		return buildErr
	}
	return nil
}
