package http1

import (
	"bytes"
	"math"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/http"
	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/proto"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/strutil"
)

// State is the externally observable parser state.
type State uint8

const (
	ParsingHeaders State = iota
	ParsingBody
	ParsingChunked
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case ParsingHeaders:
		return "ParsingHeaders"
	case ParsingBody:
		return "ParsingBody"
	case ParsingChunked:
		return "ParsingChunked"
	case Complete:
		return "Complete"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

type chunkedState uint8

const (
	eChunkSize chunkedState = iota
	eChunkData
	eChunkDataCRLF
	eTrailer
)

// maxChunkSizeLine limits a chunk-size line, extensions included.
const maxChunkSizeLine = 1024

// OnHeaders is called synchronously as soon as the header block is parsed. The returned
// value becomes the maximal body size for the request.
type OnHeaders func(request *http.Request) (maxBodySize uint64)

// Parser is an incremental HTTP/1.x request parser. Bytes are accumulated across Feed
// calls, so the input may be split at arbitrary boundaries. Once the parser reaches
// either Complete or Error, no further bytes are consumed until Reset is called.
type Parser struct {
	cfg           *config.Config
	request       *http.Request
	onHeaders     OnHeaders
	buf           []byte
	pos           int
	state         State
	err           error
	requestLine   bool
	headersDone   bool
	limitResolved bool
	headerBytes   int
	headersCount  int
	maxBodySize   uint64
	contentLength uint64
	chunked       chunkedState
	chunkLeft     uint64
}

func NewParser(cfg *config.Config, request *http.Request, onHeaders OnHeaders) *Parser {
	return &Parser{
		cfg:         cfg,
		request:     request,
		onHeaders:   onHeaders,
		buf:         make([]byte, 0, cfg.NET.ReadBufferSize),
		maxBodySize: cfg.Body.ProvisionalMaxSize,
	}
}

// Feed appends the data to the internal buffer and advances the state machine as far
// as possible. The passed slice isn't retained.
func (p *Parser) Feed(data []byte) {
	switch p.state {
	case Error:
		return
	case Complete:
		p.buf = append(p.buf, data...)
		return
	}

	if p.pos > 0 {
		p.buf = p.buf[:copy(p.buf, p.buf[p.pos:])]
		p.pos = 0
	}

	p.buf = append(p.buf, data...)
	if err := p.parse(); err != nil {
		p.fail(err)
	}
}

func (p *Parser) parse() error {
	for {
		switch p.state {
		case ParsingHeaders:
			done, err := p.parseHeaders()
			if err != nil || !done {
				return err
			}
		case ParsingBody:
			return p.parseBody()
		case ParsingChunked:
			return p.parseChunked()
		default:
			return nil
		}
	}
}

func (p *Parser) parseHeaders() (done bool, err error) {
	maxSize := p.cfg.Headers.MaxSize

	for {
		rest := p.buf[p.pos:]
		lf := bytes.IndexByte(rest, '\n')
		if lf == -1 {
			if p.headerBytes+len(rest) > maxSize {
				return false, status.ErrHeaderFieldsTooLarge
			}

			return false, nil
		}

		line := rest[:lf]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		p.pos += lf + 1

		if !p.requestLine && len(line) == 0 {
			// stray empty lines before the request line, usually left by clients
			// terminating a body with an extra CRLF
			continue
		}

		p.headerBytes += lf + 1
		if p.headerBytes > maxSize {
			return false, status.ErrHeaderFieldsTooLarge
		}

		switch {
		case !p.requestLine:
			if err = p.parseRequestLine(string(line)); err != nil {
				return false, err
			}

			p.requestLine = true
		case len(line) == 0:
			return true, p.headersComplete()
		default:
			if err = p.parseHeader(string(line)); err != nil {
				return false, err
			}
		}
	}
}

func (p *Parser) parseRequestLine(line string) error {
	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return status.ErrBadRequestLine
	}

	rawMethod, target, protocol := tokens[0], tokens[1], tokens[2]
	if !isToken(rawMethod) || len(target) == 0 || target[0] != '/' {
		return status.ErrBadRequestLine
	}

	request := p.request
	request.RawMethod = rawMethod
	request.Method = method.Parse(rawMethod)
	request.Target = target

	path, query, _ := strings.Cut(target, "?")
	decoded, ok := strutil.URLDecode(path)
	if !ok {
		return status.ErrURLDecoding
	}

	request.Path = decoded
	request.Query = query

	request.Protocol = proto.FromString(protocol)
	if request.Protocol == proto.Unknown {
		return status.ErrHTTPVersionNotSupported
	}

	return nil
}

func (p *Parser) parseHeader(line string) error {
	if line[0] == ' ' || line[0] == '\t' {
		// obsolete line folding isn't supported
		return status.ErrBadHeader
	}

	colon := strings.IndexByte(line, ':')
	if colon == -1 {
		return status.ErrBadHeader
	}

	key := strutil.RStripWS(line[:colon])
	if len(key) == 0 {
		return status.ErrBadHeader
	}

	p.headersCount++
	if p.headersCount > p.cfg.Headers.MaxCount {
		return status.ErrTooManyHeaders
	}

	p.request.Headers[strings.ToLower(key)] = strutil.StripWS(line[colon+1:])

	return nil
}

func (p *Parser) headersComplete() error {
	p.headersDone = true
	request := p.request

	var (
		hasLength bool
		err       error
	)

	if te, found := request.Headers["transfer-encoding"]; found {
		if request.Chunked, err = parseTransferEncoding(te); err != nil {
			return err
		}
	}

	if cl, found := request.Headers["content-length"]; found && !request.Chunked {
		if p.contentLength, err = parseContentLength(cl); err != nil {
			return err
		}

		hasLength = true
	}

	if p.onHeaders != nil {
		p.maxBodySize = p.onHeaders(request)
		p.limitResolved = true
	}

	switch {
	case request.Chunked:
		p.state = ParsingChunked
		p.chunked = eChunkSize
	case hasLength && p.contentLength > 0:
		if p.contentLength > p.maxBodySize {
			return status.ErrBodyTooLarge
		}

		p.state = ParsingBody
		if uint64(cap(request.Body)) < p.contentLength {
			request.Body = make([]byte, 0, min(p.contentLength, uint64(p.cfg.NET.ReadBufferSize)*16))
		}
	default:
		p.state = Complete
	}

	return nil
}

func (p *Parser) parseBody() error {
	if p.contentLength > p.maxBodySize {
		return status.ErrBodyTooLarge
	}

	request := p.request
	rest := p.buf[p.pos:]
	n := min(uint64(len(rest)), p.contentLength-uint64(len(request.Body)))
	request.Body = append(request.Body, rest[:n]...)
	p.pos += int(n)

	if uint64(len(request.Body)) == p.contentLength {
		p.state = Complete
	}

	return nil
}

func (p *Parser) parseChunked() error {
	request := p.request

	for {
		rest := p.buf[p.pos:]

		switch p.chunked {
		case eChunkSize:
			lf := bytes.IndexByte(rest, '\n')
			if lf == -1 {
				if len(rest) > maxChunkSizeLine {
					return status.ErrBadChunk
				}

				return nil
			}

			if lf == 0 || rest[lf-1] != '\r' {
				return status.ErrBadChunk
			}

			size, err := parseChunkSize(rest[:lf-1])
			if err != nil {
				return err
			}

			p.pos += lf + 1

			if size == 0 {
				p.chunked = eTrailer
				continue
			}

			if size > p.maxBodySize-uint64(len(request.Body)) {
				return status.ErrBodyTooLarge
			}

			p.chunkLeft = size
			p.chunked = eChunkData
		case eChunkData:
			if len(rest) == 0 {
				return nil
			}

			n := min(uint64(len(rest)), p.chunkLeft)
			request.Body = append(request.Body, rest[:n]...)
			p.pos += int(n)
			p.chunkLeft -= n

			if p.chunkLeft == 0 {
				p.chunked = eChunkDataCRLF
			}
		case eChunkDataCRLF:
			if len(rest) == 0 {
				return nil
			}

			if rest[0] != '\r' {
				return status.ErrBadChunk
			}

			if len(rest) < 2 {
				return nil
			}

			if rest[1] != '\n' {
				return status.ErrBadChunk
			}

			p.pos += 2
			p.chunked = eChunkSize
		case eTrailer:
			lf := bytes.IndexByte(rest, '\n')
			if lf == -1 {
				if p.headerBytes+len(rest) > p.cfg.Headers.MaxSize {
					return status.ErrHeaderFieldsTooLarge
				}

				return nil
			}

			p.pos += lf + 1
			p.headerBytes += lf + 1

			if lf == 0 || (lf == 1 && rest[0] == '\r') {
				p.state = Complete
				return nil
			}

			// trailer fields are consumed, but not exposed
			if p.headerBytes > p.cfg.Headers.MaxSize {
				return status.ErrHeaderFieldsTooLarge
			}
		}
	}
}

func (p *Parser) fail(err error) {
	p.state = Error
	p.err = err
}

// SetMaxBodySize injects the effective body limit. Already received data is validated
// against it immediately.
func (p *Parser) SetMaxBodySize(size uint64) {
	p.maxBodySize = size
	p.limitResolved = true

	switch p.state {
	case ParsingBody:
		if p.contentLength > size {
			p.fail(status.ErrBodyTooLarge)
		}
	case ParsingChunked:
		if uint64(len(p.request.Body))+p.chunkLeft > size {
			p.fail(status.ErrBodyTooLarge)
		}
	}
}

func (p *Parser) MaxBodySize() uint64 {
	return p.maxBodySize
}

func (p *Parser) State() State {
	return p.state
}

func (p *Parser) Complete() bool {
	return p.state == Complete
}

func (p *Parser) HasError() bool {
	return p.state == Error
}

// Err returns the error the parser failed with. It is always a status.HTTPError.
func (p *Parser) Err() error {
	return p.err
}

// ErrCode returns the HTTP status code corresponding to the error, if any.
func (p *Parser) ErrCode() status.Code {
	if p.err == nil {
		return 0
	}

	return status.CodeOf(p.err)
}

// HeadersComplete tells whether the header block was fully received.
func (p *Parser) HeadersComplete() bool {
	return p.headersDone
}

// LimitResolved tells whether the effective body limit was injected.
func (p *Parser) LimitResolved() bool {
	return p.limitResolved
}

// Parsing tells whether the parser is still waiting for more bytes.
func (p *Parser) Parsing() bool {
	return p.state < Complete
}

func (p *Parser) Request() *http.Request {
	return p.request
}

// Buffered returns the number of received, but not consumed bytes.
func (p *Parser) Buffered() int {
	return len(p.buf) - p.pos
}

// Discard resets the parser and drops every buffered byte, so it can serve another
// client.
func (p *Parser) Discard() {
	p.Reset()
	p.buf = p.buf[:0]
}

// Reset prepares the parser for the next request. Unconsumed bytes are preserved, so
// pipelined requests are parsed by a following Feed(nil).
func (p *Parser) Reset() {
	leftover := p.buf[p.pos:]
	if cap(p.buf) > p.cfg.Headers.MaxSize*4 && len(leftover) < p.cfg.NET.ReadBufferSize {
		p.buf = append(make([]byte, 0, p.cfg.NET.ReadBufferSize), leftover...)
	} else {
		p.buf = p.buf[:copy(p.buf, leftover)]
	}

	p.pos = 0
	p.state = ParsingHeaders
	p.err = nil
	p.requestLine = false
	p.headersDone = false
	p.limitResolved = false
	p.headerBytes = 0
	p.headersCount = 0
	p.maxBodySize = p.cfg.Body.ProvisionalMaxSize
	p.contentLength = 0
	p.chunked = eChunkSize
	p.chunkLeft = 0
	p.request.Reset()
}

func parseTransferEncoding(value string) (chunked bool, err error) {
	for _, token := range strings.Split(value, ",") {
		token = strutil.StripWS(token)

		switch {
		case len(token) == 0, strcomp.EqualFold(token, "identity"):
		case strcomp.EqualFold(token, "chunked") && !chunked:
			chunked = true
		default:
			// either an unsupported coding, or something applied over chunked
			return false, status.ErrUnsupportedEncoding
		}
	}

	return chunked, nil
}

func parseContentLength(value string) (length uint64, err error) {
	if len(value) == 0 {
		return 0, status.ErrBadContentLength
	}

	for i := 0; i < len(value); i++ {
		char := value[i] - '0'
		if char > 9 {
			return 0, status.ErrBadContentLength
		}

		if length > (math.MaxUint64-uint64(char))/10 {
			return 0, status.ErrBodyTooLarge
		}

		length = length*10 + uint64(char)
	}

	return length, nil
}

func parseChunkSize(line []byte) (size uint64, err error) {
	if semicolon := bytes.IndexByte(line, ';'); semicolon != -1 {
		line = line[:semicolon]
	}

	hex := strutil.StripWS(uf.B2S(line))
	if len(hex) == 0 {
		return 0, status.ErrBadChunk
	}

	overflow := false

	for i := 0; i < len(hex); i++ {
		half := strutil.Unhex(hex[i])
		if half == 0xFF {
			return 0, status.ErrBadChunk
		}

		if size > math.MaxUint64>>4 {
			overflow = true
		}

		size = size<<4 | uint64(half)
	}

	if overflow {
		return 0, status.ErrChunkTooLarge
	}

	return size, nil
}

func isToken(str string) bool {
	if len(str) == 0 {
		return false
	}

	for i := 0; i < len(str); i++ {
		if str[i] <= ' ' || str[i] >= 0x7f {
			return false
		}
	}

	return true
}
