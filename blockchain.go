package ethanol

import (
	"context"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultBlockCacheSize = 128

// Settings of a Blockchain. Modified by the "With*" options passed to "At".
type Options struct {
	Logger zerolog.Logger

	// Delay between confirmation polls, see "Poller".
	PollInterval time.Duration

	// Upper bound of every confirmation wait; zero waits forever.
	Timeout time.Duration

	/**
	Users are the node's own accounts, signed by the node. Enabled
	automatically for "ipc://" URLs.
	*/
	NodeSigning bool

	// Run the dev pinger for node-signed users.
	DevPing      bool
	PingInterval time.Duration

	// Number of blocks kept by "BlockByHash".
	CacheSize int
}

type Option func(*Options)

func WithLogger(logger zerolog.Logger) Option {
	return func(opts *Options) { opts.Logger = logger }
}

func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) { opts.PollInterval = interval }
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) { opts.Timeout = timeout }
}

func WithNodeSigning() Option {
	return func(opts *Options) { opts.NodeSigning = true }
}

// Disables the dev pinger, for nodes that mine on their own.
func WithoutPinger() Option {
	return func(opts *Options) { opts.DevPing = false }
}

func WithPingInterval(interval time.Duration) Option {
	return func(opts *Options) { opts.PingInterval = interval }
}

func WithCacheSize(size int) Option {
	return func(opts *Options) { opts.CacheSize = size }
}

func defaultOptions() Options {
	return Options{
		Logger:       zerolog.Nop(),
		PollInterval: DefaultPollInterval,
		DevPing:      true,
		PingInterval: defaultPingInterval,
		CacheSize:    defaultBlockCacheSize,
	}
}

// Selects the user account. The zero value selects the default account.
type UserOptions struct {
	// Defaults to "DefaultMnemonic".
	Mnemonic Mnemonic
	Index    uint32
}

/*
Entry point: a connection to one chain. Hands out users, contracts and
transaction handles that share the connection. Safe for concurrent use.
*/
type Blockchain struct {
	url    string
	trans  Trans
	opts   Options
	poller Poller
	blocks *lru.Cache[Hash, BlockHead]

	lock    sync.Mutex
	senders map[Address]*KeySender
	pinging bool

	ctx    context.Context
	cancel context.CancelFunc
}

/*
Connects to the node at the given URL: "http(s)://", "ws(s)://", or
"ipc://<socket path>". IPC connections default to node signing; see
"Blockchain.User".
*/
func At(ctx context.Context, url string, opts ...Option) (*Blockchain, error) {
	if strings.HasPrefix(url, ipcScheme) {
		opts = append([]Option{WithNodeSigning()}, opts...)
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	trans, err := Dial(ctx, url, options.Logger)
	if err != nil {
		return nil, err
	}

	chain, err := newBlockchain(url, trans, options)
	if err != nil {
		closeTrans(trans)
		return nil, err
	}
	return chain, nil
}

// Wraps an existing transport, for example one with a custom HTTP client.
func NewBlockchain(trans Trans, opts ...Option) (*Blockchain, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return newBlockchain("", trans, options)
}

func newBlockchain(url string, trans Trans, options Options) (*Blockchain, error) {
	size := options.CacheSize
	if size <= 0 {
		size = defaultBlockCacheSize
	}
	blocks, err := lru.New[Hash, BlockHead](size)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Blockchain{
		url:   url,
		trans: trans,
		opts:  options,
		poller: Poller{
			Interval: options.PollInterval,
			Timeout:  options.Timeout,
			Logger:   options.Logger,
		},
		blocks:  blocks,
		senders: map[Address]*KeySender{},
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (self *Blockchain) Url() string { return self.url }

func (self *Blockchain) Trans() Trans { return self.trans }

func (self *Blockchain) Poller() Poller { return self.poller }

// Number of the most recent block.
func (self *Blockchain) BlockNumber(ctx context.Context) (uint64, error) {
	return EthBlockNumber(ctx, self.trans)
}

// Block with full transactions. Accepts anything "BlockNumber" allows.
func (self *Blockchain) Block(ctx context.Context, num BlockNumber) (Block, error) {
	return EthGetBlockByNumber(ctx, self.trans, num)
}

// Block header by hash, served from an LRU cache after the first lookup.
func (self *Blockchain) BlockByHash(ctx context.Context, hash Hash) (BlockHead, error) {
	return EthGetBlockByHashCached(ctx, self.trans, self.blocks, hash)
}

/*
Returns a user account.

With node signing (IPC), the user is the node's first account and the options
must be empty; the dev pinger is started on first use unless disabled.
Otherwise the user is derived from the mnemonic at the given index and signs
locally.
*/
func (self *Blockchain) User(ctx context.Context, opts UserOptions) (User, error) {
	if self.opts.NodeSigning {
		if opts != (UserOptions{}) {
			return User{}, errors.New("unsupported option for IPC user: mnemonic and index are managed by the node")
		}
		return self.nodeUser(ctx)
	}

	mnemonic := opts.Mnemonic
	if mnemonic == "" {
		mnemonic = DefaultMnemonic
	}
	return self.UserFromMnemonic(mnemonic, opts.Index)
}

func (self *Blockchain) nodeUser(ctx context.Context) (User, error) {
	addrs, err := EthAccounts(ctx, self.trans)
	if err != nil {
		return User{}, err
	}
	if len(addrs) == 0 {
		return User{}, errors.New("the node has no accounts")
	}

	sender := NodeSender{From: addrs[0]}
	self.startPinger(sender)
	return NewUser(self.trans, sender, self.poller), nil
}

func (self *Blockchain) startPinger(sender Sender) {
	if !self.opts.DevPing {
		return
	}

	self.lock.Lock()
	defer self.lock.Unlock()
	if self.pinging {
		return
	}
	self.pinging = true

	go Pinger{
		Trans:    self.trans,
		Sender:   sender,
		Interval: self.opts.PingInterval,
		Logger:   self.opts.Logger,
	}.Run(self.ctx)
}

// User signing locally with the key derived from the mnemonic at "index".
func (self *Blockchain) UserFromMnemonic(mnemonic Mnemonic, index uint32) (User, error) {
	key, err := mnemonic.DeriveKey(index)
	if err != nil {
		return User{}, err
	}
	return self.UserFromKey(key), nil
}

/*
User signing locally with the given key. Users sharing a key share one sender,
so their nonces never collide.
*/
func (self *Blockchain) UserFromKey(key *PrivateKey) User {
	self.lock.Lock()
	defer self.lock.Unlock()

	addr := key.Address()
	sender := self.senders[addr]
	if sender == nil {
		sender = NewKeySender(key)
		self.senders[addr] = sender
	}
	return NewUser(self.trans, sender, self.poller)
}

// Binds an ABI to a deployed contract's address.
func (self *Blockchain) Contract(def abi.ABI, addr Address) Contract {
	return NewContract(self.trans, def, addr, self.poller)
}

// Handle for a transaction submitted elsewhere.
func (self *Blockchain) Transaction(hash Hash, desc string) TxHandle {
	return NewTxHandle(self.trans, hash, desc, self.poller)
}

// Waits for a transaction and returns its outcome, see "Poller.Confirm".
func (self *Blockchain) Confirm(ctx context.Context, hash Hash) (TxReceipt, error) {
	return self.poller.Confirm(ctx, self.trans, hash, "")
}

// Balance of any address in wei, as of the latest block.
func (self *Blockchain) Balance(ctx context.Context, addr Address) (*big.Int, error) {
	return EthGetBalance(ctx, self.trans, addr, BlockNumberLatest)
}

// Hands out users at consecutive indexes of the mnemonic.
func (self *Blockchain) Vault(mnemonic Mnemonic) *Vault {
	if mnemonic == "" {
		mnemonic = DefaultMnemonic
	}
	return &Vault{chain: self, mnemonic: mnemonic}
}

// Stops the pinger and closes persistent transports. Idempotent.
func (self *Blockchain) Close() error {
	self.cancel()
	return closeTrans(self.trans)
}

func closeTrans(trans Trans) error {
	if closer, ok := trans.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
