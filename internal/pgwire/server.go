// Package pgwire exposes sessions over the PostgreSQL wire protocol:
// startup handshake with trust auth, then the simple-query cycle. The
// extended protocol is deliberately rejected; clients in simple-query mode
// (psql, pgx with QueryExecModeSimpleProtocol) work as-is.
package pgwire

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"sqlhild/internal/domain"
	"sqlhild/internal/query"
	"sqlhild/internal/value"
)

const (
	protocolVersion3 int32 = 196608
	sslRequestCode   int32 = 80877103
	cancelReqCode    int32 = 80877102
)

// SessionFactory mints one isolated query session per accepted connection.
type SessionFactory func() *query.Session

// Server is a PostgreSQL wire listener over the query engine.
type Server struct {
	addr     string
	logger   *slog.Logger
	sessions SessionFactory

	mu            sync.Mutex
	ln            net.Listener
	wg            sync.WaitGroup
	queryMu       sync.Mutex
	activeQueries map[cancelKey]context.CancelFunc
}

type backendKey struct {
	processID int32
	secretKey int32
}

type cancelKey struct {
	processID int32
	secretKey int32
}

// NewServer builds a server. sessions must not be nil.
func NewServer(addr string, logger *slog.Logger, sessions SessionFactory) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:          addr,
		logger:        logger,
		sessions:      sessions,
		activeQueries: make(map[cancelKey]context.CancelFunc),
	}
}

// Start opens the listener and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return fmt.Errorf("pgwire listener already started")
	}

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen pgwire: %w", err)
	}
	s.ln = ln
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the listener and waits for in-flight connections up to
// the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil {
		return fmt.Errorf("close pgwire listener: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pgwire shutdown: %w", ctx.Err())
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln == nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	key := newBackendKey()

	for {
		length, code, err := readStartupHeader(conn)
		if err != nil {
			return
		}
		if length < 8 {
			writeError(conn, "invalid startup packet")
			return
		}

		switch code {
		case sslRequestCode:
			// No TLS: reject the upgrade, the client continues in clear.
			if _, err := conn.Write([]byte{'N'}); err != nil {
				return
			}
			continue
		case cancelReqCode:
			payloadSize := int(length) - 8
			if payloadSize != 8 {
				return
			}
			payload := make([]byte, payloadSize)
			if _, err := io.ReadFull(conn, payload); err != nil {
				return
			}
			s.cancelQuery(binary.BigEndian.Uint32(payload[0:4]), binary.BigEndian.Uint32(payload[4:8]))
			return
		case protocolVersion3:
			payloadSize := int(length) - 8
			var payload []byte
			if payloadSize > 0 {
				payload = make([]byte, payloadSize)
				if _, err := io.ReadFull(conn, payload); err != nil {
					return
				}
			}

			sess := s.sessions()
			// Trust auth: every startup parameter, user included, is
			// accepted and recorded as a session parameter.
			for k, v := range parseStartupParams(payload) {
				sess.SetParameter(k, v)
			}

			if err := writeAuthenticationOK(conn); err != nil {
				return
			}
			if err := writeParameterStatus(conn, "server_version", "16.0"); err != nil {
				return
			}
			if err := writeParameterStatus(conn, "client_encoding", "UTF8"); err != nil {
				return
			}
			if err := writeParameterStatus(conn, "standard_conforming_strings", "on"); err != nil {
				return
			}
			if err := writeBackendKeyData(conn, key.processID, key.secretKey); err != nil {
				return
			}
			if err := writeReadyForQuery(conn); err != nil {
				return
			}

			s.logger.Debug("connection established", "session", sess.ID(), "remote", conn.RemoteAddr())
			s.serveQueryLoop(conn, sess, key)
			return
		default:
			writeError(conn, "unsupported startup protocol")
			return
		}
	}
}

func (s *Server) serveQueryLoop(conn net.Conn, sess *query.Session, key backendKey) {
	for {
		var msgType [1]byte
		if _, err := io.ReadFull(conn, msgType[:]); err != nil {
			return
		}

		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		length := int(binary.BigEndian.Uint32(lenBuf[:]))
		if length < 4 {
			writeError(conn, "invalid frontend message")
			writeReadyForQuery(conn)
			continue
		}

		payload := make([]byte, length-4)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		switch msgType[0] {
		case 'Q':
			s.handleSimpleQuery(conn, sess, payload, key)
		case 'P', 'B', 'D', 'E', 'C':
			writeError(conn, "extended query protocol is not supported")
			writeReadyForQuery(conn)
		case 'H':
			// Flush: no buffered output to force.
		case 'S':
			writeReadyForQuery(conn)
		case 'X':
			return
		default:
			writeError(conn, fmt.Sprintf("unsupported frontend message type %q", msgType[0]))
			writeReadyForQuery(conn)
		}
	}
}

var setStmtRE = regexp.MustCompile(`(?is)^\s*set\s+(\w+)\s*(?:=|\bto\b)\s*(.+?)\s*;?\s*$`)

func (s *Server) handleSimpleQuery(conn net.Conn, sess *query.Session, payload []byte, key backendKey) {
	sqlText := string(bytes.TrimSuffix(payload, []byte{0}))

	if strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sqlText), ";")) == "" {
		writeEmptyQueryResponse(conn)
		writeReadyForQuery(conn)
		return
	}

	// SET statements are accepted and recorded, never executed: clients and
	// drivers send them routinely during connection setup.
	if m := setStmtRE.FindStringSubmatch(sqlText); m != nil {
		val := strings.Trim(m[2], "'\"")
		sess.SetParameter(m[1], val)
		writeCommandComplete(conn, "SET")
		writeReadyForQuery(conn)
		return
	}

	queryCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.trackActiveQuery(key, cancel)
	defer s.untrackActiveQuery(key)

	result, err := sess.Query(queryCtx, sqlText)
	if err != nil {
		writeQueryError(conn, err)
		writeReadyForQuery(conn)
		return
	}
	defer result.Close()

	if err := writeRowDescription(conn, result.Schema); err != nil {
		return
	}

	// Rows stream as they are produced. An error after rows have gone out
	// is reported in place of CommandComplete; the connection stays usable.
	count := 0
	for {
		row, err := result.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeQueryError(conn, err)
			writeReadyForQuery(conn)
			return
		}
		if err := writeDataRow(conn, row); err != nil {
			return
		}
		count++
	}

	if err := writeCommandComplete(conn, fmt.Sprintf("SELECT %d", count)); err != nil {
		return
	}
	writeReadyForQuery(conn)
}

func (s *Server) trackActiveQuery(key backendKey, cancel context.CancelFunc) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.activeQueries[cancelKey(key)] = cancel
}

func (s *Server) untrackActiveQuery(key backendKey) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	delete(s.activeQueries, cancelKey(key))
}

func (s *Server) cancelQuery(processID, secretKey uint32) {
	s.queryMu.Lock()
	cancel := s.activeQueries[cancelKey{processID: int32(processID), secretKey: int32(secretKey)}]
	s.queryMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func newBackendKey() backendKey {
	return backendKey{processID: randomInt32(), secretKey: randomInt32()}
}

func randomInt32() int32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	v := int32(binary.BigEndian.Uint32(b[:]))
	if v == 0 {
		return 1
	}
	return v
}

func readStartupHeader(r io.Reader) (int32, int32, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, err
	}
	length := int32(binary.BigEndian.Uint32(header[0:4]))
	code := int32(binary.BigEndian.Uint32(header[4:8]))
	return length, code, nil
}

func parseStartupParams(payload []byte) map[string]string {
	params := map[string]string{}
	parts := bytes.Split(payload, []byte{0})
	for i := 0; i+1 < len(parts); i += 2 {
		k := string(parts[i])
		if k == "" {
			break
		}
		params[k] = string(parts[i+1])
	}
	return params
}

// sqlStateForError maps the domain error taxonomy to SQLSTATE codes.
func sqlStateForError(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "57014"
	}

	var syntax *domain.SyntaxError
	if errors.As(err, &syntax) {
		return "42601"
	}
	var resolution *domain.ResolutionError
	if errors.As(err, &resolution) {
		return "42P01"
	}
	var planErr *domain.PlanError
	if errors.As(err, &planErr) {
		return "42703"
	}
	var evalErr *domain.EvalError
	if errors.As(err, &evalErr) {
		return "22000"
	}
	var protoErr *domain.ProtocolError
	if errors.As(err, &protoErr) {
		return "08P01"
	}

	return "XX000"
}

func writeError(conn net.Conn, message string) error {
	return writeErrorCode(conn, message, "0A000")
}

func writeQueryError(conn net.Conn, err error) error {
	if err == nil {
		return writeError(conn, "query failed")
	}
	return writeErrorCode(conn, err.Error(), sqlStateForError(err))
}

func writeErrorCode(conn net.Conn, message, code string) error {
	body := make([]byte, 0, 128)
	body = append(body, 'S')
	body = append(body, []byte("ERROR")...)
	body = append(body, 0)
	body = append(body, 'C')
	body = append(body, []byte(code)...)
	body = append(body, 0)
	body = append(body, 'M')
	body = append(body, []byte(message)...)
	body = append(body, 0)
	body = append(body, 0)
	return writePacket(conn, 'E', body)
}

func writePacket(conn net.Conn, typ byte, body []byte) error {
	packet := make([]byte, 1+4+len(body))
	packet[0] = typ
	binary.BigEndian.PutUint32(packet[1:5], uint32(4+len(body)))
	copy(packet[5:], body)
	_, err := conn.Write(packet)
	return err
}

func writeAuthenticationOK(conn net.Conn) error {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, 0)
	return writePacket(conn, 'R', body)
}

func writeParameterStatus(conn net.Conn, key, val string) error {
	body := make([]byte, 0, len(key)+len(val)+2)
	body = append(body, []byte(key)...)
	body = append(body, 0)
	body = append(body, []byte(val)...)
	body = append(body, 0)
	return writePacket(conn, 'S', body)
}

func writeReadyForQuery(conn net.Conn) error {
	_, err := conn.Write([]byte{'Z', 0, 0, 0, 5, 'I'})
	return err
}

func writeEmptyQueryResponse(conn net.Conn) error {
	_, err := conn.Write([]byte{'I', 0, 0, 0, 4})
	return err
}

func writeBackendKeyData(conn net.Conn, processID, secretKey int32) error {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], uint32(processID))
	binary.BigEndian.PutUint32(body[4:8], uint32(secretKey))
	return writePacket(conn, 'K', body)
}

// typeOID maps value kinds to the PostgreSQL type OIDs clients use to
// decode result columns. Text and opaque values travel as TEXT.
func typeOID(k value.Kind) (oid uint32, size int16) {
	switch k {
	case value.KindBool:
		return 16, 1
	case value.KindInt:
		return 20, 8
	case value.KindFloat:
		return 701, 8
	case value.KindTimestamp:
		return 1114, 8
	default:
		return 25, -1
	}
}

func writeRowDescription(conn net.Conn, schema value.Schema) error {
	body := make([]byte, 0, 64)
	buf2 := make([]byte, 2)
	buf4 := make([]byte, 4)

	binary.BigEndian.PutUint16(buf2, uint16(len(schema)))
	body = append(body, buf2...)

	for _, col := range schema {
		body = append(body, []byte(col.Name)...)
		body = append(body, 0)

		binary.BigEndian.PutUint32(buf4, 0) // table OID
		body = append(body, buf4...)
		binary.BigEndian.PutUint16(buf2, 0) // attribute number
		body = append(body, buf2...)

		oid, size := typeOID(col.Kind)
		binary.BigEndian.PutUint32(buf4, oid)
		body = append(body, buf4...)
		binary.BigEndian.PutUint16(buf2, uint16(size))
		body = append(body, buf2...)

		binary.BigEndian.PutUint32(buf4, 0xFFFFFFFF) // type modifier
		body = append(body, buf4...)
		binary.BigEndian.PutUint16(buf2, 0) // text format
		body = append(body, buf2...)
	}
	return writePacket(conn, 'T', body)
}

func writeDataRow(conn net.Conn, row value.Row) error {
	body := make([]byte, 0, 64)
	buf2 := make([]byte, 2)
	buf4 := make([]byte, 4)

	binary.BigEndian.PutUint16(buf2, uint16(len(row)))
	body = append(body, buf2...)

	for _, v := range row {
		if v.IsNull() {
			binary.BigEndian.PutUint32(buf4, 0xFFFFFFFF)
			body = append(body, buf4...)
			continue
		}
		text := encodeValue(v)
		binary.BigEndian.PutUint32(buf4, uint32(len(text)))
		body = append(body, buf4...)
		body = append(body, text...)
	}
	return writePacket(conn, 'D', body)
}

// encodeValue renders a non-null value in PostgreSQL text format.
func encodeValue(v value.Value) string {
	switch v.Kind() {
	case value.KindBool:
		if v.Bool() {
			return "t"
		}
		return "f"
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case value.KindTimestamp:
		return v.Timestamp().Format(value.TimestampLayout)
	default:
		return v.String()
	}
}

func writeCommandComplete(conn net.Conn, tag string) error {
	return writePacket(conn, 'C', append([]byte(tag), 0))
}
