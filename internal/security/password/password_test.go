package password

import (
	"strings"
	"testing"
)

// params reducidos para que los tests no tarden
var testParams = Params{Memory: 16 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(testParams, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("formato PHC inesperado: %s", phc)
	}
	if !Verify("correct horse battery staple", phc) {
		t.Fatal("Verify rechazó la password correcta")
	}
	if Verify("correct horse battery stable", phc) {
		t.Fatal("Verify aceptó una password incorrecta")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	a, _ := Hash(testParams, "misma")
	b, _ := Hash(testParams, "misma")
	if a == b {
		t.Fatal("dos hashes de la misma password idénticos: salt no aleatorio")
	}
}

func TestHash_RejectsEmpty(t *testing.T) {
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatal("password vacía aceptada")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	for _, phc := range []string{
		"",
		"no-es-un-phc",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$ZGs",
	} {
		if Verify("x", phc) {
			t.Fatalf("Verify aceptó PHC inválido: %q", phc)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireDigit: true}

	if ok, _ := p.Validate("Abcdef12"); !ok {
		t.Fatal("password válida rechazada")
	}
	if ok, reasons := p.Validate("abc"); ok || len(reasons) == 0 {
		t.Fatal("password corta sin mayúscula ni dígito aceptada")
	}
	if ok, reasons := p.Validate("abcdefgh1"); ok || len(reasons) != 1 {
		t.Fatalf("esperaba fallo sólo por mayúscula, got ok=%v reasons=%v", ok, reasons)
	}

	sym := Policy{MinLength: 4, RequireSymbol: true}
	if ok, _ := sym.Validate("abcd"); ok {
		t.Fatal("sin símbolo aceptada con RequireSymbol")
	}
	if ok, _ := sym.Validate("ab#d"); !ok {
		t.Fatal("con símbolo rechazada")
	}
}
