package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	sspak "github.com/vansante/go-sspak"
)

// payloadMarker separates an executable from the pak appended to it. It is assembled at runtime
// so the executable itself never contains the literal marker.
var payloadMarker = []byte("\n" + strings.Join([]string{"__SSPAK", "PAYLOAD", "START__"}, "_") + "\n")

const scanChunkSize = 64 * 1024

// markerOffset returns the offset of the first payload marker in r, or -1 when there is none
func markerOffset(r io.ReaderAt, size int64) (int64, error) {
	overlap := int64(len(payloadMarker) - 1)
	buf := make([]byte, scanChunkSize+overlap)

	for offset := int64(0); offset < size; offset += scanChunkSize {
		n, err := r.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return -1, err
		}
		idx := bytes.Index(buf[:n], payloadMarker)
		if idx >= 0 {
			return offset + int64(idx), nil
		}
		if err == io.EOF {
			break
		}
	}
	return -1, nil
}

// payloadBounds returns the offset and size of the pak appended to the file
func payloadBounds(file *os.File) (offset, size int64, err error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, 0, err
	}
	idx, err := markerOffset(file, stat.Size())
	if err != nil {
		return 0, 0, fmt.Errorf("error scanning %s: %w", file.Name(), err)
	}
	if idx < 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoPayload, file.Name())
	}
	offset = idx + int64(len(payloadMarker))
	return offset, stat.Size() - offset, nil
}

// openSelf reads the pak appended to the given executable
func openSelf(executable string) *Archive {
	return &Archive{location: SelfLocation, executable: executable}
}

// Bundle writes dest as a copy of the executable with the pak at pakPath appended, so the result
// can be run with SelfLocation as its archive. A pak already carried by the executable is replaced.
func Bundle(pakPath, executable, dest string) error {
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return fmt.Errorf("error locating executable: %w", err)
		}
	}

	exe, err := os.Open(executable)
	if err != nil {
		return err
	}
	defer exe.Close()
	stat, err := exe.Stat()
	if err != nil {
		return err
	}
	exeSize, err := markerOffset(exe, stat.Size())
	if err != nil {
		return err
	}
	if exeSize < 0 {
		exeSize = stat.Size()
	}

	pak, err := os.Open(pakPath)
	if err != nil {
		return err
	}
	defer pak.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o775)
	if errors.Is(err, os.ErrExist) {
		return sspak.Preconditionf("file %s already exists", dest)
	}
	if err != nil {
		return err
	}

	err = writeBundle(out, io.NewSectionReader(exe, 0, exeSize), pak)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("error bundling %s: %w", dest, err)
	}
	return nil
}

func writeBundle(w io.Writer, exe, pak io.Reader) error {
	_, err := io.Copy(w, exe)
	if err != nil {
		return err
	}
	_, err = w.Write(payloadMarker)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, pak)
	return err
}
