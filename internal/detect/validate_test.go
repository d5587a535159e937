package detect

import "testing"

func TestValidateCPF(t *testing.T) {
	t.Run("ValidVectors", func(t *testing.T) {
		for _, cpf := range []string{
			"52998224725",
			"529.982.247-25",
			"111.444.777-35",
			"11144477735",
		} {
			if !ValidateCPF(cpf) {
				t.Errorf("expected %q to validate", cpf)
			}
		}
	})

	t.Run("InvalidVectors", func(t *testing.T) {
		for _, cpf := range []string{
			"",
			"123",
			"11111111111",
			"000.000.000-00",
			"529.982.247-26", // last digit off by one
			"529.982.247-15", // first check digit off
			"123.456.789-00",
			"not a cpf at all",
		} {
			if ValidateCPF(cpf) {
				t.Errorf("expected %q to fail validation", cpf)
			}
		}
	})

	t.Run("SingleDigitFlip", func(t *testing.T) {
		valid := "52998224725"
		flipped := 0
		for i := 0; i < len(valid); i++ {
			b := []byte(valid)
			b[i] = '0' + (b[i]-'0'+1)%10
			if !ValidateCPF(string(b)) {
				flipped++
			}
		}
		if flipped == 0 {
			t.Error("no single-digit flip was rejected")
		}
	})
}

func TestValidateCNPJ(t *testing.T) {
	t.Run("ValidVectors", func(t *testing.T) {
		for _, cnpj := range []string{
			"11222333000181",
			"11.222.333/0001-81",
		} {
			if !ValidateCNPJ(cnpj) {
				t.Errorf("expected %q to validate", cnpj)
			}
		}
	})

	t.Run("InvalidVectors", func(t *testing.T) {
		for _, cnpj := range []string{
			"",
			"11222333000182",
			"11111111111111",
			"11.222.333/0001-00",
			"1122233300018", // 13 digits
		} {
			if ValidateCNPJ(cnpj) {
				t.Errorf("expected %q to fail validation", cnpj)
			}
		}
	})
}
