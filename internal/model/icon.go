package model

// IconRef identifies a renderable category icon. The set is closed: category
// creation validates against KnownIcons and substitutes FallbackIcon for
// anything it does not recognize, so consumers never have to resolve icon
// names dynamically.
type IconRef string

const (
	IconUtensils         IconRef = "utensils"
	IconCar              IconRef = "car"
	IconHome             IconRef = "home"
	IconShoppingCart     IconRef = "shopping-cart"
	IconBriefcase        IconRef = "briefcase"
	IconHeartPulse       IconRef = "heart-pulse"
	IconBookOpen         IconRef = "book-open"
	IconGift             IconRef = "gift"
	IconCircleDollarSign IconRef = "circle-dollar-sign"
	IconTag              IconRef = "tag"
	IconPlane            IconRef = "plane"
	IconCoffee           IconRef = "coffee"
	IconMusic            IconRef = "music"
	IconWrench           IconRef = "wrench"
)

// FallbackIcon is used for unknown or missing icon references.
const FallbackIcon = IconTag

// KnownIcons is the closed set of icon identifiers, mapped to their asset
// paths served by the web UI.
var KnownIcons = map[IconRef]string{
	IconUtensils:         "icons/utensils.svg",
	IconCar:              "icons/car.svg",
	IconHome:             "icons/home.svg",
	IconShoppingCart:     "icons/shopping-cart.svg",
	IconBriefcase:        "icons/briefcase.svg",
	IconHeartPulse:       "icons/heart-pulse.svg",
	IconBookOpen:         "icons/book-open.svg",
	IconGift:             "icons/gift.svg",
	IconCircleDollarSign: "icons/circle-dollar-sign.svg",
	IconTag:              "icons/tag.svg",
	IconPlane:            "icons/plane.svg",
	IconCoffee:           "icons/coffee.svg",
	IconMusic:            "icons/music.svg",
	IconWrench:           "icons/wrench.svg",
}

// NormalizeIcon returns ref if it is known, otherwise FallbackIcon.
func NormalizeIcon(ref IconRef) IconRef {
	if _, ok := KnownIcons[ref]; ok {
		return ref
	}
	return FallbackIcon
}

// IconAsset resolves an icon reference to its asset path, falling back for
// unknown values.
func IconAsset(ref IconRef) string {
	return KnownIcons[NormalizeIcon(ref)]
}
