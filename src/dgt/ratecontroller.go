package dgt

// LossFeed is the externally-supplied read-only training-loss observation.
// A file-backed implementation lives in the lossfeed package; any source
// that yields a monotone scalar reading of training progress conforms
// (spec design note: loss-feed polling is coarse by design).
type LossFeed interface {
	Read() float64
}

// zeroLossFeed is used when no feed is configured: readings are always 0,
// which forces the non-adaptive fallback k = dmlcKInit.
type zeroLossFeed struct{}

func (zeroLossFeed) Read() float64 { return 0 }

// rateController produces the DGT drop fraction k from the trend of a
// scalar loss reading.
type rateController struct {
	feed LossFeed

	adaptive bool
	kInit    float64
	kMin     float64

	preLoss   float64
	deltaL    float64
	firstLoss float64
	rtLoss    float64
	haveFirst bool
}

func newRateController(feed LossFeed, adaptive bool, kInit, kMin float64) *rateController {
	if feed == nil {
		feed = zeroLossFeed{}
	}
	return &rateController{feed: feed, adaptive: adaptive, kInit: kInit, kMin: kMin}
}

// refresh reads the loss feed, updates delta_l/rt_loss/first_loss, and
// returns the drop rate k to use for the step that is about to begin.
func (r *rateController) refresh() float64 {
	curLoss := r.feed.Read()
	if r.preLoss != 0 {
		r.deltaL = r.preLoss - curLoss
	} else {
		r.deltaL = 1
	}
	r.preLoss = curLoss

	r.rtLoss = curLoss
	if !r.haveFirst && curLoss != 0 {
		r.firstLoss = curLoss
		r.haveFirst = true
	}

	if !r.adaptive {
		return r.kInit
	}
	return r.adaptiveK()
}

// adaptiveK implements k = max(kInit * (rtLoss/firstLoss), kMin). Until a
// non-zero first loss has been seen it returns kInit.
func (r *rateController) adaptiveK() float64 {
	if r.firstLoss == 0 {
		return r.kInit
	}
	k := r.kInit * (r.rtLoss / r.firstLoss)
	if k > r.kMin {
		return k
	}
	return r.kMin
}
