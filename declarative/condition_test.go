package declarative

import "testing"

func TestEvalConditionNumeric(t *testing.T) {
	scope := map[string]any{"age": float64(15)}
	ok, err := evalCondition("age < 18", scope)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
	ok, err = evalCondition("age >= 18", scope)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestEvalConditionString(t *testing.T) {
	scope := map[string]any{"status": "approved"}
	ok, err := evalCondition(`status == approved`, scope)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
	ok, err = evalCondition(`status != approved`, scope)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestEvalConditionUnknownVariable(t *testing.T) {
	_, err := evalCondition("age < 18", map[string]any{})
	if err == nil {
		t.Fatal("expected error for unknown variable")
	}
}

func TestEvalConditionEmptyAlwaysTrue(t *testing.T) {
	ok, err := evalCondition("", nil)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}
}
