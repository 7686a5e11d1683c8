package derm

import (
	"sort"
	"strings"
)

// Disease describes one lesion class the recognition model can report
type Disease struct {
	Code            string `json:"code"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	NameEn          string `json:"name_en"`
	Description     string `json:"description"`
	Advice          string `json:"advice"`
	RiskLevel       string `json:"risk_level"`
	CommonLocations string `json:"common_locations"`
	Prevention      string `json:"prevention"`
	Treatment       string `json:"treatment"`
}

// catalog is keyed by the upper-case class code
var catalog = map[string]Disease{
	"MEL": {
		Code:            "MEL",
		ID:              "melanoma",
		Name:            "黑色素瘤",
		NameEn:          "Melanoma",
		Description:     "黑色素瘤是一种高度恶性的皮肤癌，起源于黑色素细胞。它通常表现为形状不规则、颜色不均匀的痣样病变，可能快速增大、出血或瘙痒。黑色素瘤容易转移，早期诊断和治疗至关重要。",
		Advice:          "1. 立即就医进行专业诊断和治疗\n2. 避免阳光暴晒，使用高倍数防晒霜\n3. 定期进行皮肤自我检查\n4. 如病变有变化（大小、形状、颜色等）应及时就医\n5. 可能需要手术切除及后续治疗",
		RiskLevel:       "高",
		CommonLocations: "背部、腿部、面部、手掌、脚底",
		Prevention:      "避免过度日晒，定期皮肤检查，避免使用日光浴床",
		Treatment:       "手术切除、免疫治疗、靶向治疗、化疗、放疗",
	},
	"NV": {
		Code:            "NV",
		ID:              "melanocytic_nevus",
		Name:            "黑素细胞痣",
		NameEn:          "Melanocytic Nevus",
		Description:     "黑素细胞痣俗称痣或色素痣，是由黑色素细胞组成的良性皮肤肿瘤。多数痣是先天性的，但也可能在成年期出现。通常表现为平坦或隆起的棕色至黑色斑点，边界清晰，大小不一。",
		Advice:          "1. 定期观察痣的变化（ABCDE法则）\n2. 避免反复摩擦或刺激痣的部位\n3. 如痣出现快速增大、颜色改变、出血等症状应及时就医\n4. 防晒以减少新痣形成\n5. 美容需求或易摩擦部位可考虑手术切除",
		RiskLevel:       "低（但可能恶变）",
		CommonLocations: "全身各处",
		Prevention:      "防晒，避免刺激，定期检查",
		Treatment:       "一般无需治疗，必要时手术切除",
	},
	"BCC": {
		Code:            "BCC",
		ID:              "basal_cell_carcinoma",
		Name:            "基底细胞癌",
		NameEn:          "Basal Cell Carcinoma",
		Description:     "基底细胞癌是最常见的皮肤癌类型，起源于表皮基底层细胞。通常表现为珍珠样结节或溃疡性病变，生长缓慢，很少转移但可能局部侵袭。常见于长期阳光暴露部位。",
		Advice:          "1. 尽早就医确诊和治疗\n2. 定期皮肤科检查\n3. 严格防晒，避免进一步日晒损伤\n4. 避免自行处理病变部位\n5. 治疗后定期随访以防复发",
		RiskLevel:       "中",
		CommonLocations: "面部、颈部、头皮等阳光暴露部位",
		Prevention:      "防晒，避免过度日晒，定期皮肤检查",
		Treatment:       "手术切除、Mohs手术、冷冻治疗、光动力治疗",
	},
	"AKIEC": {
		Code:            "AKIEC",
		ID:              "actinic_keratosis",
		Name:            "光化性角化病",
		NameEn:          "Actinic Keratosis",
		Description:     "光化性角化病又称日光性角化病，是长期紫外线暴露引起的皮肤癌前病变。表现为粗糙、鳞屑性斑块，颜色从肤色到红棕色不等，触感砂纸样。有发展为鳞状细胞癌的风险。",
		Advice:          "1. 及时就医评估和治疗\n2. 严格防晒，使用SPF30+防晒霜\n3. 避免进一步阳光暴露\n4. 定期皮肤科随访\n5. 自我监测病变变化",
		RiskLevel:       "中（癌前病变）",
		CommonLocations: "面部、耳朵、头皮、手背等阳光暴露部位",
		Prevention:      "严格防晒，避免正午阳光，戴宽边帽",
		Treatment:       "冷冻治疗、局部药物、光动力治疗、手术切除",
	},
	"BKL": {
		Code:            "BKL",
		ID:              "benign_keratosis",
		Name:            "良性角化病",
		NameEn:          "Benign Keratosis",
		Description:     "良性角化病是一组良性表皮增生性疾病的统称，包括脂溢性角化病等。表现为边界清晰的褐色至黑色斑块，表面可有油腻性鳞屑或疣状突起，通常无症状且生长缓慢。",
		Advice:          "1. 一般无需治疗，定期观察\n2. 避免搔抓或摩擦刺激\n3. 如影响外观或反复刺激可考虑去除\n4. 注意与恶性病变鉴别\n5. 如有快速变化应及时就医",
		RiskLevel:       "低",
		CommonLocations: "面部、躯干、四肢",
		Prevention:      "防晒，皮肤保湿",
		Treatment:       "一般无需治疗，必要时冷冻、激光或手术去除",
	},
	"DF": {
		Code:            "DF",
		ID:              "dermatofibroma",
		Name:            "皮肤纤维瘤",
		NameEn:          "Dermatofibroma",
		Description:     "皮肤纤维瘤是一种常见的良性真皮肿瘤，通常由局部轻微损伤引起。表现为坚实、肤色至棕色的丘疹或结节，按压时中央可见酒窝征，生长缓慢，多无症状。",
		Advice:          "1. 通常无需治疗，定期观察\n2. 避免反复摩擦刺激\n3. 如出现疼痛、瘙痒或快速增大应就医\n4. 美容需求可考虑手术切除\n5. 注意与恶性病变鉴别",
		RiskLevel:       "低",
		CommonLocations: "四肢，尤其是小腿",
		Prevention:      "避免皮肤损伤，及时处理伤口",
		Treatment:       "观察，必要时手术切除",
	},
	"VASC": {
		Code:            "VASC",
		ID:              "vascular_lesion",
		Name:            "血管病变",
		NameEn:          "Vascular Lesion",
		Description:     "血管病变包括多种血管异常性疾病，如血管瘤、蜘蛛痣、樱桃状血管瘤等。表现为红色至紫色的斑点或丘疹，按压可褪色。多数为良性，但需与恶性血管肿瘤鉴别。",
		Advice:          "1. 根据类型由医生评估是否需要治疗\n2. 避免外伤导致出血\n3. 监测病变大小和形态变化\n4. 美容需求可考虑激光等治疗\n5. 如快速增大、出血或溃疡应及时就医",
		RiskLevel:       "低至中",
		CommonLocations: "面部、躯干、四肢",
		Prevention:      "避免外伤，防晒",
		Treatment:       "观察、激光治疗、手术切除",
	},
}

// Lookup returns the catalog entry for code, ignoring case
func Lookup(code string) (Disease, bool) {
	d, ok := catalog[strings.ToUpper(strings.TrimSpace(code))]
	return d, ok
}

// Codes returns every class code in sorted order
func Codes() []string {
	codes := make([]string, 0, len(catalog))
	for code := range catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
