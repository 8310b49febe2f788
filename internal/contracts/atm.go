// Package contracts bundles the interface descriptions of the deployed contracts
// this client talks to.
package contracts

// ATMABI is the interface of the Assessment ATM contract: a single owner-held
// balance with deposit and withdraw entry points.
const ATMABI = `[
  {"inputs":[{"internalType":"uint256","name":"initBalance","type":"uint256"}],"stateMutability":"payable","type":"constructor"},
  {"inputs":[{"internalType":"uint256","name":"balance","type":"uint256"},{"internalType":"uint256","name":"withdrawAmount","type":"uint256"}],"name":"InsufficientBalance","type":"error"},
  {"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"Deposit","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"Withdraw","type":"event"},
  {"inputs":[],"name":"balance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[],"name":"getBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"owner","outputs":[{"internalType":"address payable","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"_withdrawAmount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Method names of the ATM contract.
const (
	MethodGetBalance = "getBalance"
	MethodDeposit    = "deposit"
	MethodWithdraw   = "withdraw"

	ErrInsufficientBalance = "InsufficientBalance"
)

// DefaultATMAddress is where the first deployment on a fresh local dev node lands.
const DefaultATMAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
