package mockmc

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/gocbcore/v9/memd"
)

func startServer(t *testing.T, options ...ServerOption) *Server {
	s, err := Start("127.0.0.1:0", options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type rawClient struct {
	conn   net.Conn
	mc     *memd.Conn
	opaque uint32
}

func dialRaw(t *testing.T, s *Server) *rawClient {
	conn, err := net.DialTimeout("tcp", s.Address(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rawClient{conn: conn, mc: memd.NewConn(conn)}
}

func (c *rawClient) do(t *testing.T, req *memd.Packet) *memd.Packet {
	c.opaque++
	req.Magic = memd.CmdMagicReq
	req.Opaque = c.opaque
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(time.Second)))
	require.NoError(t, c.mc.WritePacket(req))
	resp, _, err := c.mc.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, memd.CmdMagicRes, resp.Magic)
	assert.Equal(t, c.opaque, resp.Opaque)
	return resp
}

func setPacket(key, value string, cas uint64) *memd.Packet {
	extras := make([]byte, 8)
	binary.BigEndian.PutUint32(extras[0:4], 7)
	return &memd.Packet{Command: memd.CmdSet, Key: []byte(key), Value: []byte(value), Extras: extras, Cas: cas}
}

func TestServerSetGetDelete(t *testing.T) {
	s := startServer(t)
	c := dialRaw(t, s)

	resp := c.do(t, &memd.Packet{Command: memd.CmdGet, Key: []byte("k")})
	assert.Equal(t, memd.StatusKeyNotFound, resp.Status)

	resp = c.do(t, setPacket("k", "v", 0))
	assert.Equal(t, memd.StatusSuccess, resp.Status)

	resp = c.do(t, &memd.Packet{Command: memd.CmdGet, Key: []byte("k")})
	require.Equal(t, memd.StatusSuccess, resp.Status)
	assert.Equal(t, "v", string(resp.Value))
	require.Len(t, resp.Extras, 4)
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(resp.Extras))

	resp = c.do(t, &memd.Packet{Command: memd.CmdDelete, Key: []byte("k")})
	assert.Equal(t, memd.StatusSuccess, resp.Status)

	resp = c.do(t, &memd.Packet{Command: memd.CmdDelete, Key: []byte("k")})
	assert.Equal(t, memd.StatusKeyExists, resp.Status)

	assert.Equal(t, 5, s.Requests())
	assert.Equal(t, 0, s.Keys())
}

func TestServerCAS(t *testing.T) {
	s := startServer(t)
	c := dialRaw(t, s)

	assert.Equal(t, memd.StatusSuccess, c.do(t, setPacket("k", "v1", 999)).Status)
	assert.Equal(t, memd.StatusKeyExists, c.do(t, setPacket("k", "v2", 1000)).Status)

	resp := c.do(t, &memd.Packet{Command: memd.CmdGet, Key: []byte("k")})
	assert.Equal(t, "v1", string(resp.Value))
	assert.Equal(t, uint64(999), resp.Cas)

	assert.Equal(t, memd.StatusKeyExists, c.do(t, &memd.Packet{Command: memd.CmdDelete, Key: []byte("k"), Cas: 1000}).Status)
	assert.Equal(t, memd.StatusSuccess, c.do(t, &memd.Packet{Command: memd.CmdDelete, Key: []byte("k"), Cas: 999}).Status)
}

func TestServerRejectsBadRequests(t *testing.T) {
	s := startServer(t)
	c := dialRaw(t, s)

	resp := c.do(t, &memd.Packet{Command: memd.CmdIncrement, Key: []byte("n")})
	assert.Equal(t, memd.StatusUnknownCommand, resp.Status)

	resp = c.do(t, &memd.Packet{Command: memd.CmdSet, Key: []byte("k"), Value: []byte("v")})
	assert.Equal(t, memd.StatusInvalidArgs, resp.Status)
}

func TestServerAcknowledgesSASL(t *testing.T) {
	s := startServer(t)
	c := dialRaw(t, s)

	resp := c.do(t, &memd.Packet{Command: memd.CmdSASLListMechs})
	assert.Equal(t, memd.StatusSuccess, resp.Status)
	assert.Equal(t, "PLAIN", string(resp.Value))

	resp = c.do(t, &memd.Packet{Command: memd.CmdSASLAuth, Key: []byte("PLAIN"), Value: []byte("\x00user\x00pass")})
	assert.Equal(t, memd.StatusSuccess, resp.Status)
}

func TestServerLatency(t *testing.T) {
	s := startServer(t, Latency(50*time.Millisecond))
	c := dialRaw(t, s)

	started := time.Now()
	c.do(t, &memd.Packet{Command: memd.CmdGet, Key: []byte("k")})
	assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
}

func TestServerRefusesConnections(t *testing.T) {
	s := startServer(t, RefuseConnections())
	conn, err := net.DialTimeout("tcp", s.Address(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestCloseIsIdempotentAndDropsConnections(t *testing.T) {
	s, err := Start("127.0.0.1:0")
	require.NoError(t, err)
	c := dialRaw(t, s)
	c.do(t, &memd.Packet{Command: memd.CmdGet, Key: []byte("k")})

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = c.mc.ReadPacket()
	assert.Error(t, err)
}
