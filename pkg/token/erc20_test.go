package token_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Roman-Yarinski/trading/pkg/token"
)

var (
	tokenAddr = common.HexToAddress("0x1100000000000000000000000000000000000000")
	owner     = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	spender   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	sink      = common.HexToAddress("0xCC00000000000000000000000000000000000000")
)

func TestStandardTokenTransfer(t *testing.T) {
	tk := token.NewStandardToken(tokenAddr, owner, big.NewInt(1000))

	ok, err := tk.Transfer(owner, sink, big.NewInt(300))
	if err != nil || !ok {
		t.Fatalf("transfer: ok=%v err=%v", ok, err)
	}
	if got := tk.BalanceOf(owner); got.Cmp(big.NewInt(700)) != 0 {
		t.Errorf("owner balance = %s, want 700", got)
	}
	if got := tk.BalanceOf(sink); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("sink balance = %s, want 300", got)
	}

	ok, err = tk.Transfer(owner, sink, big.NewInt(701))
	if ok || err == nil {
		t.Error("transfer above balance succeeded")
	}
	if got := tk.BalanceOf(owner); got.Cmp(big.NewInt(700)) != 0 {
		t.Errorf("failed transfer changed balance to %s", got)
	}
}

func TestStandardTokenTransferFrom(t *testing.T) {
	tk := token.NewStandardToken(tokenAddr, owner, big.NewInt(1000))

	// No allowance yet.
	ok, err := tk.TransferFrom(spender, owner, sink, big.NewInt(100))
	if ok || err == nil {
		t.Error("transferFrom without allowance succeeded")
	}

	tk.Approve(owner, spender, big.NewInt(500))
	if got := tk.Allowance(owner, spender); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("allowance = %s, want 500", got)
	}

	ok, err = tk.TransferFrom(spender, owner, sink, big.NewInt(200))
	if err != nil || !ok {
		t.Fatalf("transferFrom: ok=%v err=%v", ok, err)
	}
	if got := tk.Allowance(owner, spender); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("allowance = %s after spend, want 300", got)
	}
	if got := tk.BalanceOf(sink); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("sink balance = %s, want 200", got)
	}

	// Allowance left but balance exhausted elsewhere.
	tk.Transfer(owner, sink, big.NewInt(799))
	ok, err = tk.TransferFrom(spender, owner, sink, big.NewInt(2))
	if ok || err == nil {
		t.Error("transferFrom above balance succeeded")
	}
}

func TestStandardTokenMint(t *testing.T) {
	tk := token.NewStandardToken(tokenAddr, owner, nil)
	if got := tk.BalanceOf(owner); got.Sign() != 0 {
		t.Errorf("balance = %s before mint, want 0", got)
	}
	tk.Mint(owner, big.NewInt(42))
	tk.Mint(owner, big.NewInt(8))
	if got := tk.BalanceOf(owner); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("balance = %s, want 50", got)
	}
}

func TestQuietTokenReturnsFalseWithoutError(t *testing.T) {
	tk := token.NewQuietToken(tokenAddr, owner, big.NewInt(10))

	ok, err := tk.Transfer(owner, sink, big.NewInt(100))
	if ok || err != nil {
		t.Errorf("quiet failure: ok=%v err=%v, want false,nil", ok, err)
	}
	ok, err = tk.TransferFrom(spender, owner, sink, big.NewInt(1))
	if ok || err != nil {
		t.Errorf("quiet transferFrom failure: ok=%v err=%v, want false,nil", ok, err)
	}

	// Successful paths still behave normally.
	ok, err = tk.Transfer(owner, sink, big.NewInt(5))
	if !ok || err != nil {
		t.Errorf("quiet success: ok=%v err=%v", ok, err)
	}
}

func TestRegistry(t *testing.T) {
	r := token.NewRegistry()
	tk := token.NewStandardToken(tokenAddr, owner, big.NewInt(1))

	if err := r.Register(tk); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(tk); err == nil {
		t.Error("duplicate registration succeeded")
	}
	if err := r.Register(nil); err == nil {
		t.Error("nil registration succeeded")
	}

	got, err := r.Get(tokenAddr)
	if err != nil || got.Address() != tokenAddr {
		t.Errorf("get: %v", err)
	}
	if _, err := r.Get(sink); err == nil {
		t.Error("lookup of unknown token succeeded")
	}
	if l := r.List(); len(l) != 1 {
		t.Errorf("list = %d entries, want 1", len(l))
	}
}
