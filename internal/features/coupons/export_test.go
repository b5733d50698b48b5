package coupons

import "time"

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetCodeGenerator(fn func(prefix string) string) { s.newCode = fn }
