package config

import "testing"

func validConfig() *Config {
	return &Config{
		Database: DBConfig{Database: "codewarden"},
		LLM:      LLMConfig{Provider: "openai-compatible", Model: "gpt-4o-mini"},
		Scanner:  ScannerConfig{MaxConcurrent: 2},
		Budget:   BudgetConfig{MonthlyUSD: 20},
	}
}

func TestValidateForServer_AcceptsAValidConfig(t *testing.T) {
	if err := validConfig().ValidateForServer(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateForServer_RejectsMissingDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Database = ""
	if err := cfg.ValidateForServer(); err == nil {
		t.Fatal("expected an error for missing database.database")
	}
}

func TestValidateForServer_RejectsNonPositiveConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.Scanner.MaxConcurrent = 0
	if err := cfg.ValidateForServer(); err == nil {
		t.Fatal("expected an error for scanner.max_concurrent <= 0")
	}
}

func TestValidateForServer_RejectsNonPositiveBudget(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.MonthlyUSD = 0
	if err := cfg.ValidateForServer(); err == nil {
		t.Fatal("expected an error for budget.monthly_usd <= 0")
	}
}

func TestValidateForCLI_OnlyRequiresLLMFields(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "openai-compatible", Model: "gpt-4o-mini"}}
	if err := cfg.ValidateForCLI(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestConfigHash_IsDeterministicAndFactorSensitive(t *testing.T) {
	a := validConfig()
	b := validConfig()

	hashA, err := a.ConfigHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hashB, err := b.ConfigHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashA != hashB {
		t.Fatalf("identical configs must hash identically: %q != %q", hashA, hashB)
	}

	b.LLM.Model = "gpt-4o"
	hashC, err := b.ConfigHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashA == hashC {
		t.Fatal("changing llm.model must change the config hash")
	}
}

func TestConfigHash_IgnoresUnrelatedFields(t *testing.T) {
	a := validConfig()
	b := validConfig()
	b.Server.Port = "9999"
	b.Database.Password = "different"

	hashA, err := a.ConfigHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hashB, err := b.ConfigHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashA != hashB {
		t.Fatal("server port and database credentials must not affect the config hash")
	}
}
