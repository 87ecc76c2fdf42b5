package stream

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An AVRer formats itself as a raw AVR line, such as
// *8D4840D6202CC371C32CE0576098;
type AVRer interface {
	AVR() string
}

// AVRServer writes raw AVR lines to every connected TCP client.
type AVRServer struct {
	ln net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg sync.WaitGroup
}

// ListenAVR starts accepting clients on addr.
func ListenAVR(addr string) (*AVRServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	s := &AVRServer{
		ln:    ln,
		conns: make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	logrus.WithField("addr", ln.Addr()).Info("avr server listening")

	return s, nil
}

func (s *AVRServer) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *AVRServer) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		logrus.WithField("remote", conn.RemoteAddr()).Info("avr client connected")
	}
}

// Clients returns the number of connected clients.
func (s *AVRServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Send writes msg's AVR line to all clients, dropping those that fail.
func (s *AVRServer) Send(msg AVRer) {
	line := []byte(msg.AVR() + "\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := conn.Write(line); err != nil {
			logrus.WithError(err).WithField("remote", conn.RemoteAddr()).Info("avr client disconnected")
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

// Close stops accepting clients and disconnects those connected.
func (s *AVRServer) Close() error {
	err := s.ln.Close()
	s.wg.Wait()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
	s.mu.Unlock()

	return err
}
