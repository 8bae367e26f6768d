/*
Convenience layer for talking to an Ethereum node from a Go program: connect,
pick an account, compile and deploy contracts, call them, and wait for
transactions to finish.

Features:

	* Ethereum types with "0x" hex encoding

	* RPC transports: HTTP, WebSocket, IPC

	* strongly-typed RPC methods

	* users derived from a mnemonic and signing locally, or node accounts
	  signed by the node

	* Solidity compilation (requires a Solidity compiler)

	* contract deployment, reads, calls and event history

	* a transaction handle that waits for a definitive outcome

	* optional CLI tool, see "cmd/ethanol"

Connecting

	chain, err := ethanol.At(ctx, "http://localhost:8545")

The URL may also be "ws://..." or "ipc:///path/to/geth.ipc". On IPC, users
are the node's own accounts and the node signs for them. A local "geth --dev"
only mines when there's something to mine, so for such chains a background
pinger sends a zero-value self transfer every second; disable it with
"WithoutPinger".

Users

	user, err := chain.User(ctx, ethanol.UserOptions{})

Without options, the user is derived from "DefaultMnemonic" at index 0, path
"m/44'/60'/0'/0/0". Transactions are signed in-process and submitted raw.
Sends from the same key are serialized so that nonces don't collide.

Contracts

	blank, err := ethanol.Compiler{}.Compile(ctx, "contracts/Token")
	deployment, err := user.Deploy(ctx, blank, 100, "Testcoin", "TST")
	token, err := deployment.Contract(ctx)
	out, err := user.Read(ctx, token, "balanceOf", user.Address())
	tx, err := user.Call(ctx, token, "transfer", "0x0000000000000000000000000000000000000123", 1)
	events, err := tx.Logs(ctx)

Arguments are converted to the types the ABI expects: Go integers become
*big.Int or the exact fixed-size type, addresses may be Address values or hex
strings.

Waiting for transactions

Every send returns a handle. "Receipt" blocks until the transaction is mined
and reports one of three outcomes: the receipt, TxNotFoundError when the node
doesn't know the hash, or TxFailedError when the transaction reverted. Pending
transactions are polled once per second, indefinitely; bound the wait with the
context or "WithTimeout".

Chains that predate receipt status codes are handled by comparing gas used
against the gas limit: a transaction that used all of its gas is assumed to
have failed. Gas limits filled in by this package are therefore the node's
estimate plus "GasPadding".

Types

All byte array types such as Address and Hash have a special rule: a
zero-initialized array is JSON-encoded as "null", not as
"0x0000000000000.....". For consistency, this rule also affects MarshalText,
where an empty array encodes as "". However, the .String() method is
unaffected.
*/
package ethanol
