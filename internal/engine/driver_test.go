package engine

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"edgelattice/internal/coder"
	"edgelattice/internal/fixedpoint"
	"edgelattice/internal/poa"
	"edgelattice/internal/proposal"
	"edgelattice/internal/transport"
)

// chanSink forwards every published proposal to a channel so the test
// can play the operator collaborator in-process.
type chanSink struct{ ch chan proposal.State }

func (c chanSink) Publish(s proposal.State) error {
	c.ch <- s
	return nil
}

// bindWorkerRange binds n UDP sockets on consecutive loopback ports,
// retrying from a fresh ephemeral base if a neighboring port is taken.
func bindWorkerRange(t *testing.T, n int) (int, []*net.UDPConn) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		first, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		if err != nil {
			continue
		}
		base := first.LocalAddr().(*net.UDPAddr).Port
		conns := []*net.UDPConn{first}
		ok := true
		for i := 1; i < n; i++ {
			c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: base + i})
			if err != nil {
				ok = false
				break
			}
			conns = append(conns, c)
		}
		if ok {
			for _, c := range conns {
				c := c
				t.Cleanup(func() { c.Close() })
			}
			return base, conns
		}
		for _, c := range conns {
			c.Close()
		}
	}
	t.Fatal("could not bind a consecutive worker port range")
	return 0, nil
}

// runWorker answers every TASK with M·x immediately, the same
// computation cmd/worker performs minus the jitter and loss simulation.
func runWorker(conn *net.UDPConn, workerID int) {
	buf := make([]byte, 65507)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		frame, err := transport.Decode(payload)
		if err != nil || frame.Tag != transport.TagTask {
			continue
		}
		task := frame.Task
		resp := transport.ResultFrame{
			Seq: task.Seq,
			Tid: task.Tid,
			W:   workerID,
			Y:   fixedpoint.MatVec(task.M, task.X),
			C:   task.C,
		}
		data, err := transport.EncodeResult(resp)
		if err != nil {
			continue
		}
		_, _ = conn.WriteToUDP(data, addr)
	}
}

// TestRunEndToEndOverUDP drives Engine.Run against real loopback UDP:
// four in-process workers answer coded tasks, and the test plays the
// operator, signing a COMMIT for each proposal it sees. Two committed
// cycles must leave the third cycle's proposal equal to
// A·(A·(A·x0 + B·u) + B·u) + B·u in fixed point.
func TestRunEndToEndOverUDP(t *testing.T) {
	n, r, workers := 4, 2, 4
	base, conns := bindWorkerRange(t, workers)
	for i, conn := range conns {
		go runWorker(conn, i)
	}

	log := zerolog.Nop()
	sock, err := transport.Bind("127.0.0.1", 0, base, log)
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })

	gate, pub, priv := testGate(t)

	c := coder.New(identity(n), r)
	x0 := make([]fixedpoint.Q, n)
	for i := range x0 {
		x0[i] = fixedpoint.ToFixed(float64(i+1) / 10)
	}
	b := zeroB(n, 1)
	for i := range b {
		b[i][0] = fixedpoint.ToFixed(0.5)
	}
	u := []fixedpoint.Q{fixedpoint.ToFixed(0.02)}

	props := make(chan proposal.State, 8)
	e := New(Config{
		Coder:       c,
		Gate:        gate,
		Sink:        chanSink{ch: props},
		B:           b,
		U:           u,
		X0:          x0,
		WorkerCount: workers,
		Deadline:    2 * time.Second,
		Rand:        rand.New(rand.NewSource(7)),
		Log:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx, sock) }()

	operator, err := net.DialUDP("udp", nil, sock.LocalAddr())
	require.NoError(t, err)
	defer operator.Close()

	commit := func(seq uint64) {
		data, err := transport.EncodeCommit(transport.CommitFrame{
			Seq: seq,
			Sig: ed25519.Sign(priv, poa.Message(seq)),
			PK:  hexPub(pub),
		})
		require.NoError(t, err)
		_, err = operator.Write(data)
		require.NoError(t, err)
	}

	var third proposal.State
	deadline := time.After(10 * time.Second)
	for third.Seq == 0 {
		select {
		case p := <-props:
			if p.Seq >= 3 {
				third = p
			} else {
				commit(p.Seq)
			}
		case <-deadline:
			t.Fatal("third proposal never arrived")
		}
	}

	// Every earlier cycle committed, so seq 3's candidate composes the
	// update twice over x0 before adding the third B·u term.
	buOffset := 0.5 * 0.02
	expect := make([]float64, n)
	for i := range expect {
		x := float64(i+1) / 10
		x = diagScale*x + buOffset
		x = diagScale*x + buOffset
		expect[i] = diagScale*x + buOffset
	}
	require.Equal(t, uint64(3), third.Seq)
	for i, q := range third.X {
		require.InDelta(t, expect[i], fixedpoint.FromFixed(q), 1e-5)
	}

	cancel()
	sock.Close()
	select {
	case <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
