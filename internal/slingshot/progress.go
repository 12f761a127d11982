package slingshot

import (
	"io"
	"sync"
)

// progressReader reports integer upload percentages as the HTTP transport
// drains the request body.
type progressReader struct {
	r          io.Reader
	size       int64
	onProgress func(int)

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, size int64, onProgress func(int)) *progressReader {
	if r == nil {
		r = eofReader{}
	}
	return &progressReader{r: r, size: size, onProgress: onProgress, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		p.report(percent(p.read, p.size))
		p.mu.Unlock()
	}
	return n, err
}

// finish reports completion when the last chunk did not land exactly on 100.
func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size > 0 {
		p.report(100)
	}
}

func (p *progressReader) report(pct int) {
	if p.onProgress == nil || p.size <= 0 || pct == p.last {
		return
	}
	p.last = pct
	p.onProgress(pct)
}

func percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(done * 100 / total)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
