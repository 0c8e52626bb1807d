package kadapter

//go:generate mockgen -destination=mock_kadapter_test.go -package=kadapter . Handler
