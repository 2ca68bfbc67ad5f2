package bridge

import (
	"os"
	"testing"
)

func TestLoadEngine(t *testing.T) {
	libPath := os.Getenv("ARROW_ENGINE_LIB")
	if libPath == "" {
		t.Skip("ARROW_ENGINE_LIB not set, skipping test")
	}

	eng, err := LoadEngine(libPath)
	if err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}

	abiVer := eng.AbiVersion()
	if abiVer != supportedABIVersion {
		t.Errorf("Expected ABI version %d, got %d", supportedABIVersion, abiVer)
	}
}

func TestEngineVersion(t *testing.T) {
	libPath := os.Getenv("ARROW_ENGINE_LIB")
	if libPath == "" {
		t.Skip("ARROW_ENGINE_LIB not set, skipping test")
	}

	eng, err := LoadEngine(libPath)
	if err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}

	version, err := eng.EngineVersion()
	if err != nil {
		t.Fatalf("Failed to get engine version: %v", err)
	}

	if version == "" {
		t.Error("Engine version is empty")
	}

	t.Logf("Engine version: %s", version)
}

func TestCapabilities(t *testing.T) {
	libPath := os.Getenv("ARROW_ENGINE_LIB")
	if libPath == "" {
		t.Skip("ARROW_ENGINE_LIB not set, skipping test")
	}

	eng, err := LoadEngine(libPath)
	if err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}

	caps, err := eng.Capabilities()
	if err != nil {
		t.Fatalf("Failed to get capabilities: %v", err)
	}

	if caps == "" {
		t.Error("Capabilities is empty")
	}

	t.Logf("Capabilities:\n%s", caps)
}

func TestConcurrentCalls(t *testing.T) {
	libPath := os.Getenv("ARROW_ENGINE_LIB")
	if libPath == "" {
		t.Skip("ARROW_ENGINE_LIB not set, skipping test")
	}

	eng, err := LoadEngine(libPath)
	if err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()

			_, _ = eng.EngineVersion()
			_, _ = eng.Capabilities()
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestLoadEngineMissingLibrary(t *testing.T) {
	_, err := LoadEngine("/nonexistent/libarrow_engine.so")
	if err == nil {
		t.Fatal("Expected error for missing library, got nil")
	}
}
