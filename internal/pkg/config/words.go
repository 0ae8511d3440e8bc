package config

// Curated word lists and patterns. These change rarely and are reviewed by
// the trust-and-safety team, so they live in code rather than in the
// environment.

// Matches http/https URLs including query strings and fragments.
const urlPattern = `https?:\/\/[-_.!~*'()a-zA-Z0-9;\/?:@&=+$,%#]+`

// URLs on these domains are deleted outright instead of masked, since they
// show up constantly in legitimate conversations.
var trustedDomains = []string{"chatwork.com"}

// Head-anchored pattern used when re-checking keywords found on scraped
// pages. "online" and friends match the plain substring scan, this second
// pass keeps only strings that actually start with the keyword.
const blacklistHeadPattern = `^LINE`

// Substrings scanned for in fetched page bodies, case-insensitive.
var blacklistKeywords = []string{"LINE"}

var defaultWhitelists = Whitelists{
	// Accounts operated by the marketplace itself follow these naming
	// schemes.
	RegexUsers: []string{
		`e-mk_order[0-9]+$`,
		`mk_order[0-9]+$`,
		`d-communication[0-9]+$`,
	},
	Users: []string{
		"webciel", "fit_001", "mk_order", "mk_c_writer",
		"magallanica500", "oeponta", "mikata200", "n-madialab", "doggy-kun",
	},
	Keywords: []string{"BUYMA", "buyma", "バイマ", "ばいま"},
	RegexHeadWords: []string{
		`^よろしくお願い`,
		`^宜しくお願い`,
		`^お世話に`,
		`^いつもお世話に`,
		`^ご提案`,
		`^この度はご協力頂き`,
		`^お待たせしております`,
	},
}

var defaultKeys = Keys{
	QueueMsg:         "spam:queue:base:msg",
	QueueNotifyRetry: "spam:queue:notify:msg",

	ArtifactMsg: "spam:model:msg:mlm",

	DatasetMsgPos:    "spam:ds:msg:pos",
	DatasetMsgNeg:    "spam:ds:msg:neg",
	DatasetPjtMlmPos: "spam:ds:pjt:mlm:pos",
	DatasetPjtMlmNeg: "spam:ds:pjt:mlm:neg",
	DatasetPjtVlPos:  "spam:ds:pjt:vl:pos",
	DatasetPjtVlNeg:  "spam:ds:pjt:vl:neg",

	DetectedUserIDs: "spam:msg:detected:user:id",
	URLBlacklist:    "spam:url:blacklist",
}

// Boilerplate that the posting form itself inserts, plus stock greetings.
// Removed as literals before segmentation so they never reach the
// vectorizer.
var removeWords = []string{
	"依頼タイトル",
	"依頼概要",
	"依頼詳細",
	"依頼の目的/概要",
	"依頼の目的・背景",
	"依頼の特徴",
	"概要・特徴",
	"開発の継続性",
	"対応ページ数",
	"用意してある素材を指定する",
	"用意してある素材",
	"重視する点",
	"希望スキル",
	"希望CMS",
	"補足説明",
	"分からないので、相談して決めさせていただければと思います。",
	"設定なし",
	"作業内容",
	"作業範囲",
	"用意してあるもの",
	"参考URL",
	"希望開発言語",
	"記事のジャンル",
	"ジャンル",
	"記事タイプ",
	"納品方法について",
	"納品方法",
	"禁止事項",
	"作業時の注意点",
	"その他注意点",
	"作業・単価の補足",
	"作業の締め切り",
	"募集の締め切り",
	"画像の入手方法",
	"画像枚数",
	"記事単価",
	"文字数",
	"記事数",
	"連絡方法",
	"報酬",
	"内容",
	"応募時の要望事項",
	"今後の流れ",
	"追記",
	"利用用途",
	"応募と採用について",
	"キーワード",
	"記事タイトル",
	"記事本文",
	"設定テーマ",
	"オプション",
	"文体",
	"サンプルURL",
	"読者ターゲット",
	"書き手の設定",
	"支払方式",
	"目安予算",
	"希望納期",
	"添付ファイル",
	"NGワード",
	"作業単価×件数",
	"作業公開",
	"一人あたりの制限",
	"フレームワーク",
	"対応OS",
	"主な機能",
	"参考アプリ",
	"開発の範囲",
	"開発の進捗状況",
	"サイトの種類",
	"期待する効果",
	"ターゲット像",
	"ページ数",
	"年代",
	"性別",
	"その他",
	"スマホ対応の有無",
	"納品後のサポート",
	"用意している",
	"用意していない",
	"サイト名称",
	"スマホ対応",
	"必要なページ",
	"希望する色",
	"サイズ",
	"希望イメージ",
	"依頼金額",
	"ECサイトの出店先",
	"CMS導入",
	"改善サイト",
	"対策ワード",
	"希望ロゴ種類",
	"ロゴ表記名称",
	"商標登録予定なし",
	"商標登録予定あり",
	"商標登録予定",
	"記載項目",
	"1本あたりの時間",
	"動画の本数",
	"撮影日数",
	"撮影予定地",
	"アニメーションの有無",
	"テロップの有無",
	"あり",
	"なし",
	"ランサーに相談しながら決めたい",
	"範囲を指定する",
	"参考動画",
	"ランサーに相談",
	"撮影あり",
	"撮影なし",
	"言語",
	"翻訳分野",
	"総ワード数",
	"ワード単価",
	"納品形式",
	"今回のみ依頼したい",
	"継続的に依頼したい",
	"時間報酬制",
	"固定報酬制",
	"ZIPファイルによる納品",
	"オンラインストレージへのアップロード",
	"指定のサーバへのアップロード",
	"男性",
	"女性",
	"以上",
	"わからない方はこちら（ランサーにお任せ）",
	"継続的に開発を依頼したい",
	"対応するページ数を指定する",
	"素材を用意していない方はこちら（ランサーにお任せ）",
	"この開発の後も、継続的に依頼したいと思っております。",
	"予算",
	"納期",
	"クオリティ",
	"柔軟な対応",
	"こまめな連絡",
	"業務経験",
	"知識",
	"納品ファイル",
	"はじめまして",
	"初めまして",
	"ご覧いただき",
	"ご覧頂き",
	"こんにちは",
	"何卒",
	"お願いいたします",
	"お願い致します",
	"よろしくお願いいたします",
	"よろしくお願い致します",
	"よろしくお願いします",
	"どうぞよろしくお願いいたします",
	"宜しくお願いします",
	"宜しくお願い致します",
	"ご迷惑をおかけしますが",
	"この度はご協力頂き",
	"ありがとうございます",
	"ありがとうございました",
	"有難うございます",
	"有難うございました",
	"いつもお世話になっております",
	"お世話になっております",
	"お世話になります",
	"あらかじめ",
	"ご了承ください",
	"ご不明点がありましたら",
	"ご欄頂きましてありがとうございます",
	"気軽に",
	"お問い合わせ",
	"ください",
	"皆様からの",
	"応募を",
	"心より",
	"お待ちしています",
	"ご応募お待ちしております",
	"画像の用意は不要です",
	"利用規約違反の恐れにより、ステータスを「一時停止」として、クライアント様と調整中です。",
	"サポートチーム：利用規約違反の恐れのある依頼内容の一部が非公開となりました",
	"サポートチーム",
	"ランサーズ",
	"ランサー",
	"()",
	"（）",
	"!",
	"！",
	"○",
	"●",
	"？",
	"?",
	"※",
	"<span>",
}

// Recommended Japanese stop words (SlothLib) plus terms added by hand after
// inspecting misclassified documents.
var stopWords = []string{
	"あそこ", "あたり", "あちら", "あっち", "あと", "あな", "あなた", "あれ", "いくつ",
	"いつ", "いま", "いや", "いろいろ", "うち", "おおまか", "おまえ", "おれ", "がい",
	"かく", "かたち", "かやの", "から", "がら", "きた", "くせ", "ここ", "こっち",
	"こと", "ごと", "こちら", "ごっちゃ", "これ", "これら", "ごろ", "さまざま", "さらい",
	"さん", "しかた", "しよう", "すか", "ずつ", "すね", "すべて", "ぜんぶ", "そう",
	"そこ", "そちら", "そっち", "そで", "それ", "それぞれ", "それなり", "たくさん",
	"たち", "たび", "ため", "だめ", "ちゃ", "ちゃん", "てん", "とおり", "とき", "どこ",
	"どこか", "ところ", "どちら", "どっか", "どっち", "どれ", "なか", "なかば", "なに",
	"など", "なん", "はじめ", "はず", "はるか", "ひと", "ひとつ", "ふく", "ぶり", "べつ",
	"へん", "ぺん", "ほう", "ほか", "まさ", "まし", "まとも", "まま", "みたい", "みつ",
	"みなさん", "みんな", "もと", "もの", "もん", "やつ", "よう", "よそ", "わけ",
	"わたし", "ハイ", "上", "中", "下", "字", "年", "月", "日", "時", "分", "秒",
	"週", "火", "水", "木", "金", "土", "国", "都", "道", "府", "県", "市", "区",
	"町", "村", "各", "第", "方", "何", "的", "度", "文", "者", "性", "体", "人",
	"他", "今", "部", "課", "係", "外", "類", "達", "気", "室", "口", "誰", "用",
	"界", "会", "首", "男", "女", "別", "話", "私", "屋", "店", "家", "場", "等",
	"見", "際", "観", "段", "略", "例", "系", "論", "形", "間", "地", "員", "線",
	"点", "書", "品", "力", "法", "感", "作", "元", "手", "数", "彼", "彼女", "子",
	"内", "楽", "喜", "怒", "哀", "輪", "頃", "化", "境", "俺", "奴", "高", "校",
	"婦", "伸", "紀", "誌", "レ", "行", "列", "事", "士", "台", "集", "様", "所",
	"歴", "器", "名", "情", "連", "毎", "式", "簿", "回", "匹", "個", "席", "束",
	"歳", "目", "通", "面", "円", "玉", "枚", "前", "後", "左", "右", "次", "先",
	"春", "夏", "秋", "冬", "一", "二", "三", "四", "五", "六", "七", "八", "九",
	"十", "百", "千", "万", "億", "兆", "下記", "上記", "時間", "今回", "前回",
	"場合", "一つ", "年生", "自分", "ヶ所", "ヵ所", "カ所", "箇所", "ヶ月", "ヵ月",
	"カ月", "箇月", "名前", "本当", "確か", "時点", "全部", "関係", "近く", "方法",
	"我々", "違い", "多く", "扱い", "新た", "その後", "半ば", "結局", "様々",
	"以前", "以後", "以降", "未満", "以上", "以下", "幾つ", "毎日", "自体",
	"向こう", "何人", "手段", "同じ", "感じ", "お願い", "おねがい", "まじめ", "いただき",
	"おの", "ばらつき", "づつ", "なり", "そのままで", "お待ち", "お話し", "まいの",
	"お知らせ", "よろしくお願いします", "てつ", "やり取り", "お話", "いくら", "なのか",
	"かなり", "本円", "お仕事", "ご存知", "曜日", "幸い", "しない", "ます", "inc",
	"client", "そのため", "たま", "日日", "うえ", "おご", "こまめ", "おかけ",
	"いかが", "との", "とんでも", "ござ", "商品", "くだ", "さい", "した", "する",
	"いらっしゃる", "ござる", "なる", "くる", "やる", "なさる", "いただける", "思う",
}
