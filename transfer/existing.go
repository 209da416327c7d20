package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

var errNothingToSave = errors.New("neither a database dump nor an assets directory was given")

// SaveExisting builds a pak from a local SQL dump and/or a local assets directory. Plain .sql dumps are
// compressed while they are added, .sql.gz dumps are added as they are.
func (o *Orchestrator) SaveExisting(ctx context.Context, archivePath, dumpFile, assetsDir string) error {
	if dumpFile == "" && assetsDir == "" {
		return errNothingToSave
	}

	w, err := archive.Create(archivePath, o.writerOptions(), o.logger)
	if err != nil {
		return err
	}
	err = o.saveExisting(ctx, w, dumpFile, assetsDir)
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		_ = w.Abort()
		return err
	}

	o.logger.Info("sspak.transfer.Orchestrator.SaveExisting: Saved archive",
		"archive", archivePath,
		"dump", dumpFile,
		"assets", assetsDir,
	)
	return nil
}

func (o *Orchestrator) saveExisting(ctx context.Context, w *archive.Writer, dumpFile, assetsDir string) error {
	if dumpFile != "" {
		o.EmitEvent(SavingPartEvent, archive.EntryDatabase, dumpFile)
		info, err := o.saveDumpFile(w, dumpFile)
		if err != nil {
			return err
		}
		o.EmitEvent(SavedPartEvent, info)
	}

	if assetsDir != "" {
		abs, err := filepath.Abs(assetsDir)
		if err != nil {
			return err
		}
		stat, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !stat.IsDir() {
			return fmt.Errorf("assets %s is not a directory", assetsDir)
		}

		o.EmitEvent(SavingPartEvent, archive.EntryAssets, abs)
		cmd := sspak.ShellCommand(fmt.Sprintf("cd %s && tar chf - %s",
			sspak.Quote(filepath.Dir(abs)), sspak.Quote(filepath.Base(abs)),
		))
		info, err := w.WriteCompressedEntryFromProcess(ctx, archive.EntryAssets, o.executor.Local(cmd, sspak.ExecOptions{}))
		if err != nil {
			return err
		}
		o.EmitEvent(SavedPartEvent, info)
	}
	return nil
}

func (o *Orchestrator) saveDumpFile(w *archive.Writer, dumpFile string) (archive.EntryInfo, error) {
	file, err := os.Open(dumpFile)
	if err != nil {
		return archive.EntryInfo{}, err
	}
	defer file.Close()

	if strings.HasSuffix(dumpFile, ".gz") {
		return w.WriteEntryFromReader(archive.EntryDatabase, file)
	}

	pr, pw := io.Pipe()
	go func() {
		gzw := gzip.NewWriter(pw)
		_, err := io.Copy(gzw, file)
		if err == nil {
			err = gzw.Close()
		}
		pw.CloseWithError(err)
	}()
	info, err := w.WriteEntryFromReader(archive.EntryDatabase, pr)
	// Unblocks the compressor when the entry could not be written
	_ = pr.CloseWithError(err)
	return info, err
}

// Extract writes every entry of the pak into a file of the same name in destDir. Existing files are not
// overwritten.
func (o *Orchestrator) Extract(archivePath, destDir string) ([]archive.EntryInfo, error) {
	a, err := o.openArchive(archivePath)
	if err != nil {
		return nil, err
	}
	entries, err := a.Entries()
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(destDir, 0o755)
	if err != nil {
		return nil, err
	}
	for _, info := range entries {
		err = o.extractEntry(a, info.Name, filepath.Join(destDir, info.Name))
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (o *Orchestrator) extractEntry(a *archive.Archive, name, dest string) error {
	rc, _, err := a.ReadEntry(name)
	if err != nil {
		return err
	}
	defer rc.Close()

	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return sspak.Preconditionf("file %s already exists", dest)
	}
	if err != nil {
		return err
	}
	n, err := io.Copy(file, rc)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("error extracting %s: %w", name, err)
	}

	o.logger.Debug("sspak.transfer.Orchestrator.extractEntry: Extracted entry",
		"entry", name,
		"file", dest,
		"bytes", n,
	)
	return nil
}
