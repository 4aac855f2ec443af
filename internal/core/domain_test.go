package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		from Date
		n    int
		want Date
	}{
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 1, 31), 3, NewDate(2024, 4, 30)},
		{NewDate(2024, 11, 30), 3, NewDate(2025, 2, 28)},
		{NewDate(2024, 3, 31), -1, NewDate(2024, 2, 29)},
		{NewDate(2024, 2, 29), 12, NewDate(2025, 2, 28)},
	}
	for _, tc := range cases {
		if got := tc.from.AddMonthsClamped(tc.n); !got.Equal(tc.want) {
			t.Errorf("%s.AddMonthsClamped(%d) = %s, want %s", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 29))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-02-29"` {
		t.Errorf("Marshal = %s", b)
	}
	var d Date
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(NewDate(2024, 2, 29)) {
		t.Errorf("Unmarshal = %s", d)
	}
}

func TestPeriod(t *testing.T) {
	p, err := ParsePeriod("2024-02")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.End(); !got.Equal(NewDate(2024, 2, 29)) {
		t.Errorf("End() = %s, want 2024-02-29", got)
	}
	if !p.Contains(NewDate(2024, 2, 10)) || p.Contains(NewDate(2024, 3, 1)) {
		t.Errorf("Contains() wrong for %s", p)
	}
	if got := (Period{2024, 12}).Next(); got != (Period{2025, 1}) {
		t.Errorf("Next() = %s", got)
	}
	if got := (Period{2024, 1}).Prev(); got != (Period{2023, 12}) {
		t.Errorf("Prev() = %s", got)
	}
	if _, err := ParsePeriod("2024-13"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("ParsePeriod(2024-13) error = %v", err)
	}
}

func TestParseIntervalRule(t *testing.T) {
	cases := []struct {
		in   string
		want IntervalRule
		ok   bool
	}{
		{"monthly", IntervalRule{Month, 1}, true},
		{"Quarterly", IntervalRule{Month, 3}, true},
		{"biweekly", IntervalRule{Week, 2}, true},
		{"3:day", IntervalRule{Day, 3}, true},
		{"0:month", IntervalRule{}, false},
		{"2:fortnight", IntervalRule{}, false},
		{"sometimes", IntervalRule{}, false},
		{"x:week", IntervalRule{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseIntervalRule(tc.in)
			if !tc.ok {
				if !errors.Is(err, ErrInvalidRecurrenceRule) {
					t.Errorf("ParseIntervalRule(%q) error = %v, want ErrInvalidRecurrenceRule", tc.in, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ParseIntervalRule(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
			}
		})
	}
	if s := (IntervalRule{Month, 3}).String(); s != "quarterly" {
		t.Errorf("String() = %q, want quarterly", s)
	}
	if s := (IntervalRule{Day, 10}).String(); s != "10:day" {
		t.Errorf("String() = %q, want 10:day", s)
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	good := RecurringTemplate{
		AccountID:   "acc",
		Amount:      FromMinor(-1000, USD),
		Description: "rent",
		Rule:        IntervalRule{Month, 1},
		StartDate:   NewDate(2024, 1, 31),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Rule = IntervalRule{Month, 0}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRecurrenceRule) {
		t.Errorf("Every=0 error = %v", err)
	}
	bad = good
	bad.EndDate = NewDate(2023, 1, 1)
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRecurrenceRule) {
		t.Errorf("end before start error = %v", err)
	}
	bad = good
	bad.Description = " "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("empty description error = %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{AccountID: "acc", Amount: FromMinor(-500, EUR), OccurredOn: NewDate(2024, 5, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !good.IsTransfer() {
		t.Errorf("transaction without category should be a transfer")
	}
	bad := good
	bad.AccountID = ""
	if err := bad.Validate(); !errors.Is(err, ErrEmptyAccount) {
		t.Errorf("empty account error = %v", err)
	}
	bad = good
	bad.OccurredOn = Date{}
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for zero date")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Food", "food", "", "travel ", "Bills"})
	want := []string{"bills", "food", "travel"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeTags()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMilestone(t *testing.T) {
	m := Milestone{Name: "Emergency fund", Target: FromMinor(100000, USD), Current: FromMinor(25000, USD), TargetDate: NewDate(2024, 6, 30)}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := m.ProgressPercent().String(); got != "25" {
		t.Errorf("ProgressPercent() = %s, want 25", got)
	}
	if got := m.Remaining(); !got.Equal(FromMinor(75000, USD)) {
		t.Errorf("Remaining() = %v", got)
	}
	if !m.IsOverdue(NewDate(2024, 7, 1)) || m.IsOverdue(NewDate(2024, 6, 30)) {
		t.Errorf("IsOverdue() wrong")
	}
	m.Completed = true
	if m.IsOverdue(NewDate(2025, 1, 1)) {
		t.Errorf("completed milestone reported overdue")
	}
}
