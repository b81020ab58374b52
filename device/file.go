package device

import (
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/dsp/wavefile"
)

// FileCapture reads raw interleaved samples from a file or any reader.
type FileCapture struct {
	path       string
	format     audio.SampleFormat
	channels   int
	samplerate int
	skipBytes  int
	readBytes  int

	reader    io.Reader
	file      *os.File
	buf       []byte
	remaining int // bytes left to read, -1 for unlimited
}

// NewFileCapture creates a capture device reading from path. An empty path
// reads from stdin.
func NewFileCapture(path string, format audio.SampleFormat, channels, samplerate, chunksize, skipBytes, readBytes int) *FileCapture {
	return &FileCapture{
		path:       path,
		format:     format,
		channels:   channels,
		samplerate: samplerate,
		skipBytes:  skipBytes,
		readBytes:  readBytes,
		buf:        make([]byte, chunksize*channels*format.BytesPerSample()),
	}
}

// NewReaderCapture wraps an arbitrary reader, for tests and pipes.
func NewReaderCapture(r io.Reader, format audio.SampleFormat, channels, samplerate, chunksize int) *FileCapture {
	return &FileCapture{
		reader:     r,
		format:     format,
		channels:   channels,
		samplerate: samplerate,
		buf:        make([]byte, chunksize*channels*format.BytesPerSample()),
		remaining:  -1,
	}
}

func (f *FileCapture) Open() error {
	if f.reader == nil {
		if f.path == "" {
			f.reader = os.Stdin
		} else {
			file, err := os.Open(f.path)
			if err != nil {
				return fatal(err)
			}
			f.file = file
			f.reader = file
		}
		f.remaining = -1
		if f.readBytes > 0 {
			f.remaining = f.readBytes
		}
		if f.skipBytes > 0 {
			if _, err := io.CopyN(io.Discard, f.reader, int64(f.skipBytes)); err != nil {
				return fatal(fmt.Errorf("skipping %d bytes: %w", f.skipBytes, err))
			}
		}
	}
	return nil
}

func (f *FileCapture) SampleRate() int { return f.samplerate }
func (f *FileCapture) Channels() int   { return f.channels }

// ReadChunk reads one chunk worth of bytes. A short read at the end of the
// file yields a final partial chunk; the next call returns ErrDone.
func (f *FileCapture) ReadChunk(dst *audio.Chunk) error {
	want := len(f.buf)
	if f.remaining >= 0 && f.remaining < want {
		want = f.remaining
	}
	if want == 0 {
		return ErrDone
	}
	n, err := io.ReadFull(f.reader, f.buf[:want])
	if f.remaining >= 0 {
		f.remaining -= n
	}
	frameBytes := f.channels * f.format.BytesPerSample()
	frames := n / frameBytes
	if frames == 0 {
		if err == io.EOF || err == io.ErrUnexpectedEOF || err == nil {
			return ErrDone
		}
		return fatal(err)
	}
	dst.ValidFrames = frames
	if cerr := audio.ChunkFromBytes(dst, f.buf[:frames*frameBytes], f.format); cerr != nil {
		return fatal(cerr)
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fatal(err)
	}
	return nil
}

func (f *FileCapture) Close() error {
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		f.reader = nil
		return err
	}
	return nil
}

// FilePlayback writes raw interleaved samples to a file or any writer,
// optionally preceded by a streaming wav header.
type FilePlayback struct {
	path       string
	format     audio.SampleFormat
	channels   int
	samplerate int
	wavHeader  bool

	writer io.Writer
	file   *os.File
	buf    []byte
}

// NewFilePlayback creates a playback device writing to path. An empty path
// writes to stdout.
func NewFilePlayback(path string, format audio.SampleFormat, channels, samplerate, chunksize int, wavHeader bool) *FilePlayback {
	return &FilePlayback{
		path:       path,
		format:     format,
		channels:   channels,
		samplerate: samplerate,
		wavHeader:  wavHeader,
		buf:        make([]byte, chunksize*channels*format.BytesPerSample()),
	}
}

// NewWriterPlayback wraps an arbitrary writer, for tests and pipes.
func NewWriterPlayback(w io.Writer, format audio.SampleFormat, channels, samplerate, chunksize int, wavHeader bool) *FilePlayback {
	return &FilePlayback{
		writer:     w,
		format:     format,
		channels:   channels,
		samplerate: samplerate,
		wavHeader:  wavHeader,
		buf:        make([]byte, chunksize*channels*format.BytesPerSample()),
	}
}

func (f *FilePlayback) Open() error {
	if f.writer == nil {
		if f.path == "" {
			f.writer = os.Stdout
		} else {
			file, err := os.Create(f.path)
			if err != nil {
				return fatal(err)
			}
			f.file = file
			f.writer = file
		}
	}
	if f.wavHeader {
		if err := wavefile.WriteStreamHeader(f.writer, f.format, f.channels, f.samplerate); err != nil {
			return fatal(err)
		}
	}
	return nil
}

func (f *FilePlayback) SampleRate() int { return f.samplerate }
func (f *FilePlayback) Channels() int   { return f.channels }

func (f *FilePlayback) WriteChunk(chunk *audio.Chunk) (int, error) {
	nbytes := chunk.ValidFrames * f.channels * f.format.BytesPerSample()
	if nbytes > len(f.buf) {
		f.buf = make([]byte, nbytes)
	}
	clipped, err := audio.ChunkToBytes(chunk, f.buf[:nbytes], f.format)
	if err != nil {
		return 0, fatal(err)
	}
	if _, err := f.writer.Write(f.buf[:nbytes]); err != nil {
		return clipped, fatal(err)
	}
	return clipped, nil
}

func (f *FilePlayback) Close() error {
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		f.writer = nil
		return err
	}
	return nil
}
