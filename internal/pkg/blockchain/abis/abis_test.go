package abis

import "testing"

func TestForContract_AllKnownNamesParse(t *testing.T) {
	names := []string{
		"TrustedMulticallForwarder",
		"ERC7412",
		"CoreProxy",
		"AccountProxy",
		"PerpsAccountProxy",
		"PerpsMarketProxy",
		"SpotMarketProxy",
		"USDProxy",
		"WETH",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			parsed, err := ForContract(name)
			if err != nil {
				t.Fatalf("ForContract(%q) error: %v", name, err)
			}
			if len(parsed.Methods) == 0 {
				t.Errorf("ForContract(%q) has no methods", name)
			}
		})
	}
}

func TestForContract_Unknown(t *testing.T) {
	if _, err := ForContract("NotAContract"); err == nil {
		t.Fatal("expected error for unknown contract, got nil")
	}
}

func TestERC7412_OracleDataRequiredSelector(t *testing.T) {
	parsed, err := GetERC7412ABI()
	if err != nil {
		t.Fatalf("loading ERC7412 ABI: %v", err)
	}
	errDef, ok := parsed.Errors["OracleDataRequired"]
	if !ok {
		t.Fatal("OracleDataRequired error missing from ABI")
	}
	want := [4]byte{0xcf, 0x2c, 0xab, 0xdf}
	var got [4]byte
	copy(got[:], errDef.ID[:4])
	if got != want {
		t.Errorf("selector = %x, want %x", got, want)
	}
}

func TestGetWETHABI_WrapsERC20(t *testing.T) {
	parsed, err := GetWETHABI()
	if err != nil {
		t.Fatalf("GetWETHABI: %v", err)
	}
	for _, method := range []string{"balanceOf", "approve", "deposit", "withdraw"} {
		if _, ok := parsed.Methods[method]; !ok {
			t.Errorf("missing %s", method)
		}
	}
	if !parsed.Methods["deposit"].IsPayable() {
		t.Error("deposit should be payable")
	}
}

func TestCoreProxyABI_CreateAccountOverloads(t *testing.T) {
	parsed, err := GetCoreProxyABI()
	if err != nil {
		t.Fatalf("GetCoreProxyABI: %v", err)
	}
	if got := parsed.Methods["createAccount"].Sig; got != "createAccount()" {
		t.Errorf("createAccount = %s", got)
	}
	if got := parsed.Methods["createAccount0"].Sig; got != "createAccount(uint128)" {
		t.Errorf("createAccount0 = %s", got)
	}
}
