// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// maxDatagram bounds a single read. Coded matrices stay well within
// this on loopback; no application-layer fragmentation is attempted.
const maxDatagram = 65507

// Socket wraps one bound UDP endpoint and the worker address table
// (127.0.0.1:base+i for i in [0,N)). It is the only component that
// touches net.UDPConn directly.
type Socket struct {
	conn       *net.UDPConn
	workerBase int
	log        zerolog.Logger
}

// Bind opens a UDP socket at host:port. workerBase is the starting
// port of the worker address table; WorkerAddr(i) resolves to
// 127.0.0.1:workerBase+i.
func Bind(host string, port, workerBase int, log zerolog.Logger) (*Socket, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s:%d: %w", host, port, err)
	}
	return &Socket{conn: conn, workerBase: workerBase, log: log}, nil
}

// WorkerAddr resolves worker tid's fixed loopback address.
func (s *Socket) WorkerAddr(tid int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: s.workerBase + tid}
}

// LocalAddr is the bound local address.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// SendTask encodes and sends a TASK frame to worker tid.
func (s *Socket) SendTask(tid int, f TaskFrame) error {
	data, err := EncodeTask(f)
	if err != nil {
		return fmt.Errorf("transport: encode TASK: %w", err)
	}
	_, err = s.conn.WriteToUDP(data, s.WorkerAddr(tid))
	return err
}

// SendResult encodes and sends a RES frame to addr.
func (s *Socket) SendResult(addr *net.UDPAddr, f ResultFrame) error {
	data, err := EncodeResult(f)
	if err != nil {
		return fmt.Errorf("transport: encode RES: %w", err)
	}
	_, err = s.conn.WriteToUDP(data, addr)
	return err
}

// SendCommit encodes and sends a COMMIT frame to addr.
func (s *Socket) SendCommit(addr *net.UDPAddr, f CommitFrame) error {
	data, err := EncodeCommit(f)
	if err != nil {
		return fmt.Errorf("transport: encode COMMIT: %w", err)
	}
	_, err = s.conn.WriteToUDP(data, addr)
	return err
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Listen reads datagrams until ctx is canceled or the socket closes,
// decoding each into a Frame and pushing it onto out. Decode failures
// and unknown tags are logged at Warn and dropped — never fatal, and
// never block the receive loop on a slow consumer beyond the channel
// send itself.
func (s *Socket) Listen(ctx context.Context, out chan<- Frame) error {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transport: read: %w", err)
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		frame, err := Decode(payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping malformed datagram")
			continue
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
