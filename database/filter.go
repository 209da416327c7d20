package database

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/klauspost/compress/gzip"
)

const filterBufferSize = 64 * 1024

// statementFilter removes the lines of a dump that create or switch databases. Data blocks, which hold
// raw rows instead of statements, are passed through untouched.
type statementFilter struct {
	statement *regexp.Regexp
	// blockStart matches a statement followed by raw data lines up to blockEnd, nil when the dump has none
	blockStart *regexp.Regexp
	blockEnd   []byte
}

var (
	mysqlFilter = statementFilter{
		statement: regexp.MustCompile(`(?i)^\s*(CREATE\s+DATABASE\b|USE\s)`),
	}
	postgresFilter = statementFilter{
		statement:  regexp.MustCompile(`(?i)^\s*(CREATE\s+DATABASE\b|\\c(onnect)?\s)`),
		blockStart: regexp.MustCompile(`(?i)^COPY\s.*\sFROM\s+stdin;\s*$`),
		blockEnd:   []byte(`\.`),
	}
)

// filter reads a gzip compressed SQL dump and returns it gzip compressed again, with every line that
// creates or switches databases removed, so a dump cannot restore into another database than the one
// the restore connects to. Lines are streamed, only the start of each line is inspected.
func (f statementFilter) filter(src io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(f.filterDump(pw, src))
	}()
	return pr
}

func (f statementFilter) filterDump(dst io.Writer, src io.Reader) error {
	gzr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("error opening compressed dump: %w", err)
	}
	defer gzr.Close()

	gzw, err := gzip.NewWriterLevel(dst, gzip.BestSpeed)
	if err != nil {
		return err
	}

	err = f.filterStatements(gzw, gzr)
	if err != nil {
		_ = gzw.Close()
		return err
	}
	return gzw.Close()
}

func (f statementFilter) filterStatements(dst io.Writer, src io.Reader) error {
	br := bufio.NewReaderSize(src, filterBufferSize)
	atLineStart := true
	skipping := false
	inBlock := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart {
				line := bytes.TrimRight(chunk, "\r\n")
				switch {
				case inBlock:
					skipping = false
					inBlock = !bytes.Equal(line, f.blockEnd)
				case f.blockStart != nil && f.blockStart.Match(line):
					skipping = false
					inBlock = true
				default:
					skipping = f.statement.Match(chunk)
				}
			}
			if !skipping {
				_, werr := dst.Write(chunk)
				if werr != nil {
					return werr
				}
			}
			atLineStart = bytes.HasSuffix(chunk, []byte("\n"))
		}

		switch {
		case err == nil, err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			return nil
		default:
			return fmt.Errorf("error reading dump: %w", err)
		}
	}
}
