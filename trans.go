package ethanol

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const jsonRpcVersion = "2.0"

const ipcScheme = "ipc://"

/*
Common interface implemented by RPC transports. Obtained via "Dial" and passed
to the various RPC functions.
*/
type Trans interface {
	/**
	Should make an RPC request and decode the response body into `out`, which
	must be a pointer. A JSON `null` result must leave a pointer-to-pointer
	output as nil; this is how "not found" is told apart from errors.
	*/
	Call(ctx context.Context, out interface{}, method string, params ...interface{}) error

	/**
	Should register a subscription and block until it's finished, sending values
	over the provided channel and returning the error that interrupted it, if
	any. Before returning, should always close the output channel and, if
	possible, send an unsubscribe command to the server. Sends must also select
	on `ctx.Done()`: a reader that quits cancels the context and stops reading.
	*/
	Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error

	/**
	Should return a channel that becomes closed when the transport is connected.
	Stateless transports such as HTTP should always return a closed channel.
	*/
	Connected() chan struct{}
}

/*
Chooses the appropriate transport for the given URL: "http(s)://",
"ws(s)://" or "ipc://<socket path>". Waits until connected, if possible. The
logger is used for background logging by persistent transports.
*/
func Dial(ctx context.Context, rpcPath string, logger zerolog.Logger) (Trans, error) {
	if strings.HasPrefix(rpcPath, ipcScheme) {
		return DialIpc(ctx, strings.TrimPrefix(rpcPath, ipcScheme))
	}

	rpcUrl, err := url.Parse(rpcPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	switch rpcUrl.Scheme {
	case "ws", "wss":
		return DialWs(*rpcUrl, logger)
	case "http", "https":
		return HttpTrans{Url: *rpcUrl}, nil
	}
	return nil, errors.Errorf("unrecognized url: %v", rpcPath)
}

// Stateless HTTP transport. Doesn't support subscriptions.
type HttpTrans struct {
	Url    url.URL
	Client *http.Client // defaults to http.DefaultClient
}

// Since an HTTP transport is "always connected", this returns a channel that's
// always closed.
func (self HttpTrans) Connected() chan struct{} { return alwaysConnected }

var alwaysConnected = func() chan struct{} {
	out := make(chan struct{})
	close(out)
	return out
}()

// Makes an RPC call. Aborts when the context is canceled.
func (self HttpTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	var body bytes.Buffer
	err := json.NewEncoder(&body).Encode(rpcRequest{
		Jsonrpc: jsonRpcVersion,
		Id:      randomId(),
		Method:  method,
		Params:  nonNilParams(params),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, self.Url.String(), &body)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := self.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		bytes, _ := io.ReadAll(res.Body)
		return errors.Errorf("RPC error: %s\n%s", res.Status, bytes)
	}

	rpcRes := rpcResponse{Result: out}
	err = json.NewDecoder(res.Body).Decode(&rpcRes)
	if err != nil {
		return errors.Wrap(err, "failed to decode RPC response")
	}
	// Note: `error((*RpcError)(nil)) != nil` !!!
	if rpcRes.Error != nil {
		return errors.WithStack(*rpcRes.Error)
	}
	return nil
}

// Not implemented for the HTTP transport. Always returns an error.
func (self HttpTrans) Subscribe(_ context.Context, out chan []byte, _ ...interface{}) error {
	close(out)
	return errors.New("HTTP RPC transport doesn't support streaming")
}

/*
Stateful websocket transport. Supports RPC calls, subscriptions, and automatic
reconnect. The ".ReconnectInterval" property defaults to 1s.
*/
type WsTrans struct {
	Url               url.URL
	Logger            zerolog.Logger
	ReconnectInterval time.Duration

	// Guards Conn and connected, both replaced on reconnect.
	connLock  sync.Mutex
	connected chan struct{}
	Conn      *websocket.Conn

	// Unavoidable bottleneck
	writeLock sync.Mutex

	subLock sync.Mutex
	subs    map[string]chan either
	early   map[string]*earlyNotes

	closeOnce sync.Once
	closed    chan struct{}
}

/*
Attempts to establish a websocket connection to the RPC node at the given URL.
Waits until the connection is established, then keeps it alive in the
background until "Close" is called.
*/
func DialWs(url url.URL, logger zerolog.Logger) (*WsTrans, error) {
	transport := &WsTrans{
		Url:               url,
		Logger:            logger.With().Str("component", "ws").Str("url", url.String()).Logger(),
		ReconnectInterval: defaultReconnectInterval,
		connected:         make(chan struct{}),
		subs:              map[string]chan either{},
		early:             map[string]*earlyNotes{},
		closed:            make(chan struct{}),
	}

	err := transport.connect()
	if err != nil {
		return nil, err
	}

	go transport.run()
	return transport, nil
}

func (self *WsTrans) run() {
	for {
		err := self.receiveLoop()
		if self.isClosed() {
			return
		}
		self.Logger.Warn().Err(err).Msg("disconnected")

		for {
			self.Logger.Debug().Dur("interval", self.ReconnectInterval).Msg("waiting before reconnecting")

			select {
			case <-self.closed:
				return
			case <-time.After(self.ReconnectInterval):
			}

			err := self.connect()
			if err == nil {
				self.Logger.Info().Msg("reconnected")
				break
			}
			self.Logger.Warn().Err(err).Msg("failed to reconnect")
		}
	}
}

func (self *WsTrans) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(self.Url.String(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	self.connLock.Lock()
	self.Conn = conn
	close(self.connected)
	self.connLock.Unlock()
	return nil
}

func (self *WsTrans) conn() *websocket.Conn {
	self.connLock.Lock()
	defer self.connLock.Unlock()
	return self.Conn
}

func (self *WsTrans) receiveLoop() error {
	conn := self.conn()

	defer func() {
		self.connLock.Lock()
		self.connected = make(chan struct{})
		self.connLock.Unlock()
		conn.Close()
		self.clearSubs(errors.New("disconnected from RPC server"))
	}()

	/**
	Note: we receive and unmarshal separately. A receiving failure indicates
	a disconnect. An unmarshaling error indicates a malformed message, but
	not necessarily a connection problem.
	*/
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var head struct{ Id string }
		err = json.Unmarshal(payload, &head)
		if err != nil {
			self.Logger.Warn().Err(err).Msg("failed to decode RPC message")
			continue
		}

		if len(head.Id) != 0 {
			var body json.RawMessage
			res := rpcResponse{Result: &body}
			err = json.Unmarshal(payload, &res)
			if err != nil {
				self.Logger.Warn().Err(err).Msg("failed to decode RPC message as a response")
				continue
			}

			// Note: `error((*RpcError)(nil)) != nil` !!!
			if res.Error != nil {
				err = errors.WithStack(*res.Error)
			}

			self.dispatchToSub(head.Id, []byte(body), err)
			continue
		}

		// When ID is missing, assume it's a notification:
		// https://www.jsonrpc.org/specification#notification
		var notification rpcNotification
		err = json.Unmarshal(payload, &notification)
		if err != nil {
			self.Logger.Warn().Err(err).Msg("failed to decode RPC message as a notification")
			continue
		}
		self.dispatchNotification(notification.Params.Subscription, notification.Params.Result)
	}
}

// Returns a channel that becomes closed when the transport is connected.
func (self *WsTrans) Connected() chan struct{} {
	self.connLock.Lock()
	defer self.connLock.Unlock()
	return self.connected
}

// Makes an RPC call.
func (self *WsTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	id := randomId()
	sub := make(chan either, 1)
	self.registerSub(id, sub)
	defer self.unregisterSub(id)

	err := self.send(id, method, params...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case either := <-sub:
		if either.err != nil {
			return either.err
		}
		if either.val == nil {
			return nil
		}
		return errors.WithStack(json.Unmarshal(either.val, out))
	}
}

func (self *WsTrans) send(id string, method string, params ...interface{}) error {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	err := self.conn().WriteJSON(rpcRequest{
		Jsonrpc: jsonRpcVersion,
		Id:      id,
		Method:  method,
		Params:  nonNilParams(params),
	})
	return errors.WithStack(err)
}

/*
Creates a subscription with the given params, sending raw messages over the
provided channel. The caller is expected to handle decoding on their own.

Returns an error when the context is canceled, or when the connection is
interrupted. Does NOT automatically resubscribe.
*/
func (self *WsTrans) Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error {
	defer close(out)

	var subId string
	err := self.Call(ctx, &subId, "eth_subscribe", params...)
	if err != nil {
		return err
	}
	if subId == "" {
		return errors.New("failed to subscribe: received empty subscription ID")
	}
	defer func() {
		go self.send(randomId(), "eth_unsubscribe", subId)
	}()

	sub := make(chan either, cap(out)+1)
	self.registerSub(subId, sub)
	defer self.unregisterSub(subId)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case either, ok := <-sub:
			if !ok {
				return nil
			}
			if either.err != nil {
				return either.err
			}
			select {
			case out <- either.val:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Stops the reconnect loop and closes the connection. Idempotent.
func (self *WsTrans) Close() error {
	var err error
	self.closeOnce.Do(func() {
		close(self.closed)
		err = self.conn().Close()
	})
	return errors.WithStack(err)
}

func (self *WsTrans) isClosed() bool {
	select {
	case <-self.closed:
		return true
	default:
		return false
	}
}

/*
Registers a listener. Notifications that arrived for this ID before
registration are replayed; the node may start publishing before the
"eth_subscribe" response has been processed.
*/
func (self *WsTrans) registerSub(id string, sub chan either) {
	self.subLock.Lock()
	defer self.subLock.Unlock()

	self.subs[id] = sub
	notes := self.early[id]
	delete(self.early, id)
	if notes == nil {
		return
	}
	for _, val := range notes.vals {
		select {
		case sub <- either{val: val}:
		default:
		}
	}
}

func (self *WsTrans) unregisterSub(id string) {
	self.subLock.Lock()
	delete(self.subs, id)
	self.subLock.Unlock()
}

func (self *WsTrans) dispatchToSub(id string, val []byte, err error) {
	self.subLock.Lock()
	sub := self.subs[id]
	self.subLock.Unlock()

	if sub != nil {
		select {
		case sub <- either{val: val, err: err}:
		default:
		}
	}
}

// Notifications buffered for a subscription ID nobody listens to yet.
type earlyNotes struct {
	at   time.Time
	vals [][]byte
}

const (
	earlyNoteLimit = 16
	earlyNoteTtl   = 5 * time.Second
)

func (self *WsTrans) dispatchNotification(id string, val []byte) {
	self.subLock.Lock()
	defer self.subLock.Unlock()

	sub := self.subs[id]
	if sub != nil {
		select {
		case sub <- either{val: val}:
		default:
		}
		return
	}

	// Also collects notes of finished subscriptions that the node kept sending.
	now := time.Now()
	for key, notes := range self.early {
		if now.Sub(notes.at) > earlyNoteTtl {
			delete(self.early, key)
		}
	}

	notes := self.early[id]
	if notes == nil {
		notes = &earlyNotes{at: now}
		self.early[id] = notes
	}
	if len(notes.vals) < earlyNoteLimit {
		notes.vals = append(notes.vals, val)
	}
}

func (self *WsTrans) clearSubs(err error) {
	self.subLock.Lock()
	defer self.subLock.Unlock()

	for _, sub := range self.subs {
		select {
		case sub <- either{err: err}:
		default:
		}
	}
	self.subs = map[string]chan either{}
	self.early = map[string]*earlyNotes{}
}

/*
IPC transport over a unix socket, typically "geth.ipc" of a local node. Uses
the go-ethereum RPC client, which handles framing and subscriptions.
*/
type IpcTrans struct {
	Path   string
	client *gethrpc.Client
}

// Connects to the IPC socket at the given filesystem path.
func DialIpc(ctx context.Context, path string) (*IpcTrans, error) {
	if path == "" {
		return nil, errors.New("IPC transport requires a socket path")
	}
	client, err := gethrpc.DialIPC(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %v", path)
	}
	return &IpcTrans{Path: path, client: client}, nil
}

// An IPC connection is established by "DialIpc"; always returns a closed channel.
func (self *IpcTrans) Connected() chan struct{} { return alwaysConnected }

// Makes an RPC call. JSON-RPC errors are converted into RpcError.
func (self *IpcTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	return errors.WithStack(fromGethErr(self.client.CallContext(ctx, out, method, params...)))
}

// Subscribes via "eth_subscribe", forwarding raw notifications.
func (self *IpcTrans) Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error {
	defer close(out)

	inputs := make(chan json.RawMessage, cap(out)+1)
	sub, err := self.client.EthSubscribe(ctx, inputs, params...)
	if err != nil {
		return errors.WithStack(fromGethErr(err))
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return errors.WithStack(err)
		case val := <-inputs:
			select {
			case out <- []byte(val):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Closes the underlying socket.
func (self *IpcTrans) Close() error {
	self.client.Close()
	return nil
}

func fromGethErr(err error) error {
	rpcErr, ok := err.(gethrpc.Error)
	if !ok {
		return err
	}
	out := RpcError{Code: int64(rpcErr.ErrorCode()), Message: rpcErr.Error()}
	if dataErr, ok := err.(gethrpc.DataError); ok && dataErr.ErrorData() != nil {
		out.Data, _ = json.Marshal(dataErr.ErrorData())
	}
	return out
}

// Some nodes reject `"params": null`.
func nonNilParams(params []interface{}) []interface{} {
	if params == nil {
		return []interface{}{}
	}
	return params
}

var (
	rnd     = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndLock sync.Mutex
)

// Tens of times faster than "crypto/rand", and uniqueness is all we need.
func randomId() string {
	var buf Hash
	rndLock.Lock()
	rnd.Read(buf[:])
	rndLock.Unlock()
	return buf.String()
}
