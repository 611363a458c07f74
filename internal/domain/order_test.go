package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusDelivered, true},
		{StatusPending, StatusPreparing, false},
		{StatusConfirmed, StatusReady, false},
		{StatusDelivered, StatusReady, false},
		{StatusPending, StatusCancelled, true},
		{StatusReady, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.ok {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing, StatusReady} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = true, want false", s)
		}
	}
	for _, s := range []OrderStatus{StatusDelivered, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = false, want true", s)
		}
	}
}

func TestItemsTotal(t *testing.T) {
	items := []OrderItem{
		{Name: "margherita", Price: 1500, Quantity: 2},
		{Name: "cola", Price: 500, Quantity: 1},
	}
	if got := ItemsTotal(items); got != 3500 {
		t.Errorf("ItemsTotal = %v, want 3500", got)
	}
	if got := ItemsTotal(nil); got != 0 {
		t.Errorf("ItemsTotal(nil) = %v, want 0", got)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	n := 5
	o := Order{ID: "loc_1", Items: []OrderItem{{Name: "soup", Price: 900, Quantity: 1}}, TableNumber: &n}
	c := o.Clone()
	c.Items[0].Quantity = 9
	*c.TableNumber = 7
	if o.Items[0].Quantity != 1 {
		t.Errorf("clone aliases items: %d", o.Items[0].Quantity)
	}
	if *o.TableNumber != 5 {
		t.Errorf("clone aliases table number: %d", *o.TableNumber)
	}
}

func TestIsLocalOrderID(t *testing.T) {
	if !IsLocalOrderID(NewID(IDPrefixLocalOrder)) {
		t.Error("generated local ID not recognized")
	}
	if IsLocalOrderID("ord_42") {
		t.Error("server ID misdetected as local")
	}
}
