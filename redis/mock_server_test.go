package redis

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// mockRedisServer is a small TCP server speaking enough RESP to satisfy go-redis: it reports a
// chosen run_id from INFO server, keeps a GET/SET/DEL keyspace and can be told to abort EXEC.
type mockRedisServer struct {
	listener net.Listener
	port     int
	runID    string
	wg       sync.WaitGroup
	quit     chan struct{}
	conns    sync.Map

	failExec atomic.Bool

	mux  sync.Mutex
	data map[string][]byte
}

func newMockRedisServer(port int, runID string) (*mockRedisServer, error) {
	l, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, err
	}
	s := &mockRedisServer{
		listener: l,
		port:     l.Addr().(*net.TCPAddr).Port,
		runID:    runID,
		quit:     make(chan struct{}),
		data:     make(map[string][]byte),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *mockRedisServer) addr() string {
	return fmt.Sprintf("localhost:%d", s.port)
}

func (s *mockRedisServer) get(key string) ([]byte, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *mockRedisServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		s.conns.Store(conn, struct{}{})
		go s.handleConn(conn)
	}
}

func readCommand(r *bufio.Reader) ([][]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "*") {
		return nil, nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}
	args := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(hdr)[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, buf[:size])
	}
	return args, nil
}

func bulk(v []byte) string {
	return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
}

// exec runs one data command and returns its RESP reply.
func (s *mockRedisServer) exec(args [][]byte) string {
	s.mux.Lock()
	defer s.mux.Unlock()
	switch strings.ToUpper(string(args[0])) {
	case "GET":
		v, ok := s.data[string(args[1])]
		if !ok {
			return "$-1\r\n"
		}
		return bulk(v)
	case "SET":
		s.data[string(args[1])] = append([]byte(nil), args[2]...)
		return "+OK\r\n"
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[string(k)]; ok {
				delete(s.data, string(k))
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	}
	return "+OK\r\n"
}

func (s *mockRedisServer) handleConn(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		c.Close()
		s.conns.Delete(c)
	}()
	reader := bufio.NewReader(c)

	var queued [][][]byte
	inMulti := false
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		args, err := readCommand(reader)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}

		cmd := strings.ToUpper(string(args[0]))
		switch {
		case cmd == "MULTI":
			inMulti = true
			queued = nil
			c.Write([]byte("+OK\r\n"))
		case cmd == "EXEC":
			inMulti = false
			if s.failExec.Load() {
				queued = nil
				c.Write([]byte("-EXECABORT Transaction discarded because of previous errors.\r\n"))
				continue
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "*%d\r\n", len(queued))
			for _, q := range queued {
				sb.WriteString(s.exec(q))
			}
			queued = nil
			c.Write([]byte(sb.String()))
		case inMulti:
			queued = append(queued, args)
			c.Write([]byte("+QUEUED\r\n"))
		case cmd == "INFO":
			content := fmt.Sprintf("# Server\r\nrun_id:%s\r\n", s.runID)
			c.Write([]byte(bulk([]byte(content))))
		case cmd == "PING":
			c.Write([]byte("+PONG\r\n"))
		case cmd == "HELLO":
			c.Write([]byte("%1\r\n$7\r\nversion\r\n$5\r\n6.0.0\r\n"))
		case cmd == "GET", cmd == "SET", cmd == "DEL":
			c.Write([]byte(s.exec(args)))
		default:
			c.Write([]byte("+OK\r\n"))
		}
	}
}

func (s *mockRedisServer) Stop() {
	close(s.quit)
	s.listener.Close()
	s.conns.Range(func(key, value interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	s.wg.Wait()
}
